package scheduling

import "github.com/telemed/telemed/internal/platform/geo"

// SeedDoctors returns a sample doctor roster for development and demo
// tenants.
func SeedDoctors() []Doctor {
	return []Doctor{
		{
			Name:           "Dr. Anika Rahman",
			Email:          "dr.anika@example.com",
			Phone:          "+8801712345678",
			Specialty:      "Cardiologist",
			Qualifications: []string{"MBBS", "MD", "FCPS"},
			Experience:     8,
			Languages:      []string{"English", "Bengali"},
			WeeklyAvailability: []AvailabilityWindow{
				{Day: "Monday", StartTime: "10:00", EndTime: "16:00", Available: true},
				{Day: "Wednesday", StartTime: "10:00", EndTime: "16:00", Available: true},
				{Day: "Friday", StartTime: "14:00", EndTime: "18:00", Available: true},
			},
			Address:           "123 Medical Center, Gulshan",
			City:              "Dhaka",
			Location:          geo.Point{Latitude: 23.7937, Longitude: 90.4066},
			Rating:            4.8,
			ReviewCount:       124,
			ConsultationFee:   1500,
			AvailableForVideo: true,
		},
		{
			Name:           "Dr. Kamal Hossain",
			Email:          "dr.kamal@example.com",
			Phone:          "+8801812345679",
			Specialty:      "Dermatologist",
			Qualifications: []string{"MBBS", "DDV"},
			Experience:     12,
			Languages:      []string{"English", "Bengali", "Hindi"},
			WeeklyAvailability: []AvailabilityWindow{
				{Day: "Sunday", StartTime: "09:00", EndTime: "13:00", Available: true},
				{Day: "Tuesday", StartTime: "09:00", EndTime: "13:00", Available: true},
				{Day: "Thursday", StartTime: "15:00", EndTime: "19:00", Available: true},
			},
			Address:           "45 Skin Care Clinic, Dhanmondi",
			City:              "Dhaka",
			Location:          geo.Point{Latitude: 23.7461, Longitude: 90.3742},
			Rating:            4.5,
			ReviewCount:       87,
			ConsultationFee:   1200,
			AvailableForVideo: true,
		},
		{
			Name:           "Dr. Farhana Akter",
			Email:          "dr.farhana@example.com",
			Phone:          "+8801912345680",
			Specialty:      "General Physician",
			Qualifications: []string{"MBBS"},
			Experience:     5,
			Languages:      []string{"English", "Bengali"},
			WeeklyAvailability: []AvailabilityWindow{
				{Day: "Monday", StartTime: "09:00", EndTime: "17:00", Available: true},
				{Day: "Tuesday", StartTime: "09:00", EndTime: "17:00", Available: true},
				{Day: "Wednesday", StartTime: "09:00", EndTime: "17:00", Available: true},
				{Day: "Thursday", StartTime: "09:00", EndTime: "17:00", Available: true},
				{Day: "Saturday", StartTime: "10:00", EndTime: "14:00", Available: true},
			},
			Address:           "78 City Health Point, Uttara",
			City:              "Dhaka",
			Location:          geo.Point{Latitude: 23.8759, Longitude: 90.3795},
			Rating:            4.2,
			ReviewCount:       56,
			ConsultationFee:   800,
			AvailableForVideo: true,
		},
		{
			Name:           "Dr. Imran Chowdhury",
			Email:          "dr.imran@example.com",
			Phone:          "+8801612345681",
			Specialty:      "Orthopedic Surgeon",
			Qualifications: []string{"MBBS", "MS (Ortho)"},
			Experience:     15,
			Languages:      []string{"English", "Bengali"},
			WeeklyAvailability: []AvailabilityWindow{
				{Day: "Sunday", StartTime: "14:00", EndTime: "18:00", Available: true},
				{Day: "Wednesday", StartTime: "14:00", EndTime: "18:00", Available: true},
			},
			Address:           "12 Bone & Joint Center, Banani",
			City:              "Dhaka",
			Location:          geo.Point{Latitude: 23.7936, Longitude: 90.4007},
			Rating:            4.9,
			ReviewCount:       203,
			ConsultationFee:   2000,
			AvailableForVideo: false,
		},
	}
}
