package scheduling

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/telemed/telemed/internal/platform/db"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func conn(ctx context.Context, pool *pgxpool.Pool) querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return pool
}

// -- Doctors --

type doctorRepoPG struct {
	pool *pgxpool.Pool
}

func NewDoctorRepo(pool *pgxpool.Pool) DoctorRepository {
	return &doctorRepoPG{pool: pool}
}

const doctorCols = `id, name, email, phone, specialty, qualifications, experience, languages,
	weekly_availability, address, city, latitude, longitude,
	rating, review_count, consultation_fee, available_for_video, created_at, updated_at`

func (r *doctorRepoPG) Create(ctx context.Context, d *Doctor) error {
	d.ID = uuid.New()
	availability, err := json.Marshal(d.WeeklyAvailability)
	if err != nil {
		return err
	}
	_, err = conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO doctor (
			id, name, email, phone, specialty, qualifications, experience, languages,
			weekly_availability, address, city, latitude, longitude,
			rating, review_count, consultation_fee, available_for_video
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`,
		d.ID, d.Name, d.Email, d.Phone, d.Specialty, d.Qualifications, d.Experience, d.Languages,
		availability, d.Address, d.City, d.Location.Latitude, d.Location.Longitude,
		d.Rating, d.ReviewCount, d.ConsultationFee, d.AvailableForVideo,
	)
	return err
}

func (r *doctorRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return scanDoctor(conn(ctx, r.pool).QueryRow(ctx, `SELECT `+doctorCols+` FROM doctor WHERE id = $1`, id))
}

func (r *doctorRepoPG) Update(ctx context.Context, d *Doctor) error {
	availability, err := json.Marshal(d.WeeklyAvailability)
	if err != nil {
		return err
	}
	_, err = conn(ctx, r.pool).Exec(ctx, `
		UPDATE doctor SET
			name=$2, email=$3, phone=$4, specialty=$5, qualifications=$6, experience=$7,
			languages=$8, weekly_availability=$9, address=$10, city=$11,
			latitude=$12, longitude=$13, rating=$14, review_count=$15,
			consultation_fee=$16, available_for_video=$17, updated_at=NOW()
		WHERE id = $1`,
		d.ID, d.Name, d.Email, d.Phone, d.Specialty, d.Qualifications, d.Experience,
		d.Languages, availability, d.Address, d.City,
		d.Location.Latitude, d.Location.Longitude, d.Rating, d.ReviewCount,
		d.ConsultationFee, d.AvailableForVideo,
	)
	return err
}

func (r *doctorRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM doctor WHERE id = $1`, id)
	return err
}

func (r *doctorRepoPG) List(ctx context.Context, limit, offset int) ([]*Doctor, int, error) {
	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM doctor`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+doctorCols+` FROM doctor ORDER BY rating DESC, name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	return collectDoctors(rows, total)
}

func (r *doctorRepoPG) ListBySpecialty(ctx context.Context, specialty string, limit, offset int) ([]*Doctor, int, error) {
	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM doctor WHERE specialty ILIKE '%' || $1 || '%'`, specialty).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+doctorCols+` FROM doctor WHERE specialty ILIKE '%' || $1 || '%'
		 ORDER BY rating DESC, name LIMIT $2 OFFSET $3`, specialty, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	return collectDoctors(rows, total)
}

func (r *doctorRepoPG) ListAll(ctx context.Context) ([]*Doctor, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `SELECT `+doctorCols+` FROM doctor ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	doctors, _, err := collectDoctors(rows, 0)
	return doctors, err
}

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	var availability []byte
	err := row.Scan(
		&d.ID, &d.Name, &d.Email, &d.Phone, &d.Specialty, &d.Qualifications, &d.Experience, &d.Languages,
		&availability, &d.Address, &d.City, &d.Location.Latitude, &d.Location.Longitude,
		&d.Rating, &d.ReviewCount, &d.ConsultationFee, &d.AvailableForVideo, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(availability) > 0 {
		if err := json.Unmarshal(availability, &d.WeeklyAvailability); err != nil {
			return nil, err
		}
	}
	return &d, nil
}

func collectDoctors(rows pgx.Rows, total int) ([]*Doctor, int, error) {
	var doctors []*Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, 0, err
		}
		doctors = append(doctors, d)
	}
	return doctors, total, rows.Err()
}

// -- Appointments --

type appointmentRepoPG struct {
	pool *pgxpool.Pool
}

func NewAppointmentRepo(pool *pgxpool.Pool) AppointmentRepository {
	return &appointmentRepoPG{pool: pool}
}

const appointmentCols = `id, patient_id, doctor_id, date, time, duration, type, status, urgency,
	symptoms, created_at, updated_at`

func (r *appointmentRepoPG) Create(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	if a.Duration <= 0 {
		a.Duration = DefaultDuration
	}
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO appointment (id, patient_id, doctor_id, date, time, duration, type, status, urgency, symptoms)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		a.ID, a.PatientID, a.DoctorID, a.Date, a.Time, a.Duration, a.Type, a.Status, a.Urgency, a.Symptoms,
	)
	return err
}

func (r *appointmentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return scanAppointment(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+appointmentCols+` FROM appointment WHERE id = $1`, id))
}

func (r *appointmentRepoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status AppointmentStatus) error {
	_, err := conn(ctx, r.pool).Exec(ctx,
		`UPDATE appointment SET status=$2, updated_at=NOW() WHERE id = $1`, id, status)
	return err
}

func (r *appointmentRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM appointment WHERE id = $1`, id)
	return err
}

func (r *appointmentRepoPG) List(ctx context.Context, limit, offset int) ([]*Appointment, int, error) {
	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM appointment`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+appointmentCols+` FROM appointment ORDER BY date DESC, time DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	return collectAppointments(rows, total)
}

func (r *appointmentRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM appointment WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+appointmentCols+` FROM appointment WHERE patient_id = $1
		 ORDER BY date DESC, time DESC LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	return collectAppointments(rows, total)
}

func (r *appointmentRepoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM appointment WHERE doctor_id = $1`, doctorID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+appointmentCols+` FROM appointment WHERE doctor_id = $1
		 ORDER BY date DESC, time DESC LIMIT $2 OFFSET $3`, doctorID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	return collectAppointments(rows, total)
}

func (r *appointmentRepoPG) ListByDoctorAndDate(ctx context.Context, doctorID uuid.UUID, date string) ([]*Appointment, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+appointmentCols+` FROM appointment WHERE doctor_id = $1 AND date = $2 ORDER BY time`,
		doctorID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	appts, _, err := collectAppointments(rows, 0)
	return appts, err
}

func (r *appointmentRepoPG) ListAll(ctx context.Context) ([]*Appointment, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `SELECT `+appointmentCols+` FROM appointment ORDER BY date, time`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	appts, _, err := collectAppointments(rows, 0)
	return appts, err
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(
		&a.ID, &a.PatientID, &a.DoctorID, &a.Date, &a.Time, &a.Duration, &a.Type, &a.Status, &a.Urgency,
		&a.Symptoms, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func collectAppointments(rows pgx.Rows, total int) ([]*Appointment, int, error) {
	var appts []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, 0, err
		}
		appts = append(appts, a)
	}
	return appts, total, rows.Err()
}
