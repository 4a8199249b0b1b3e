package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"clinic-records-api/internal/apperr"
	"clinic-records-api/internal/model"
)

// RefState is what a transaction sees of a referenced doctor or patient row.
type RefState int

const (
	RefMissing RefState = iota
	RefInactive
	RefActive
)

// Querier is the set of statements the consistency engine composes inside one
// transaction. Obtain one through Store.InTx.
type Querier interface {
	DeactivateDoctor(ctx context.Context, id int64) (bool, error)
	DeactivatePatient(ctx context.Context, id int64) (bool, error)
	DeactivateAppointmentsByDoctor(ctx context.Context, doctorID int64) (int64, error)
	DeactivateAppointmentsByPatient(ctx context.Context, patientID int64) (int64, error)

	// DoctorState and PatientState hold a share lock on the row until the
	// transaction ends, so a concurrent deactivation waits for it.
	DoctorState(ctx context.Context, id int64) (RefState, error)
	PatientState(ctx context.Context, id int64) (RefState, error)

	AppointmentExists(ctx context.Context, id int64) (bool, error)
	InsertAppointment(ctx context.Context, a *model.Appointment) error
	UpdateAppointment(ctx context.Context, a *model.Appointment) (bool, error)
	DeactivateAppointment(ctx context.Context, id int64) (bool, error)
}

type queries struct {
	db dbtx
}

func (q *queries) DeactivateDoctor(ctx context.Context, id int64) (bool, error) {
	tag, err := q.db.Exec(ctx,
		`UPDATE doctors SET active=false, updated_at=NOW() WHERE id=$1`, id)
	if err != nil {
		return false, translate("deactivate doctor", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (q *queries) DeactivatePatient(ctx context.Context, id int64) (bool, error) {
	tag, err := q.db.Exec(ctx,
		`UPDATE patients SET active=false, updated_at=NOW() WHERE id=$1`, id)
	if err != nil {
		return false, translate("deactivate patient", err)
	}
	return tag.RowsAffected() > 0, nil
}

// appointments are locked in id order so two cascades sharing rows cannot deadlock
func (q *queries) DeactivateAppointmentsByDoctor(ctx context.Context, doctorID int64) (int64, error) {
	tag, err := q.db.Exec(ctx,
		`UPDATE appointments SET active=false, updated_at=NOW()
		 WHERE id IN (
		   SELECT id FROM appointments
		   WHERE doctor_id=$1 AND active
		   ORDER BY id FOR UPDATE
		 )`, doctorID)
	if err != nil {
		return 0, translate("cascade doctor", err)
	}
	return tag.RowsAffected(), nil
}

func (q *queries) DeactivateAppointmentsByPatient(ctx context.Context, patientID int64) (int64, error) {
	tag, err := q.db.Exec(ctx,
		`UPDATE appointments SET active=false, updated_at=NOW()
		 WHERE id IN (
		   SELECT id FROM appointments
		   WHERE patient_id=$1 AND active
		   ORDER BY id FOR UPDATE
		 )`, patientID)
	if err != nil {
		return 0, translate("cascade patient", err)
	}
	return tag.RowsAffected(), nil
}

func (q *queries) DoctorState(ctx context.Context, id int64) (RefState, error) {
	return q.refState(ctx, `SELECT active FROM doctors WHERE id=$1 FOR SHARE`, "doctor state", id)
}

func (q *queries) PatientState(ctx context.Context, id int64) (RefState, error) {
	return q.refState(ctx, `SELECT active FROM patients WHERE id=$1 FOR SHARE`, "patient state", id)
}

func (q *queries) refState(ctx context.Context, sql, op string, id int64) (RefState, error) {
	var active bool
	err := q.db.QueryRow(ctx, sql, id).Scan(&active)
	if errors.Is(err, pgx.ErrNoRows) {
		return RefMissing, nil
	}
	if err != nil {
		return RefMissing, translate(op, err)
	}
	if !active {
		return RefInactive, nil
	}
	return RefActive, nil
}

func (q *queries) AppointmentExists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := q.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM appointments WHERE id=$1)`, id).Scan(&exists)
	return exists, translate("appointment exists", err)
}

func (q *queries) InsertAppointment(ctx context.Context, a *model.Appointment) error {
	err := q.db.QueryRow(ctx,
		`INSERT INTO appointments
		   (scheduled_date, scheduled_time, diagnosis, prescription, room, status, patient_id, doctor_id, active)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,true)
		 RETURNING id, active, created_at, updated_at`,
		a.Date, a.Time, a.Diagnosis, a.Prescription, a.Room, a.Status, a.PatientID, a.DoctorID,
	).Scan(&a.ID, &a.Active, &a.CreatedAt, &a.UpdatedAt)
	return translate("insert appointment", err)
}

// UpdateAppointment rewrites every field except active.
func (q *queries) UpdateAppointment(ctx context.Context, a *model.Appointment) (bool, error) {
	tag, err := q.db.Exec(ctx,
		`UPDATE appointments
		 SET scheduled_date=$1, scheduled_time=$2, diagnosis=$3, prescription=$4,
		     room=$5, status=$6, patient_id=$7, doctor_id=$8, updated_at=NOW()
		 WHERE id=$9`,
		a.Date, a.Time, a.Diagnosis, a.Prescription, a.Room, a.Status, a.PatientID, a.DoctorID, a.ID,
	)
	if err != nil {
		return false, translate("update appointment", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (q *queries) DeactivateAppointment(ctx context.Context, id int64) (bool, error) {
	tag, err := q.db.Exec(ctx,
		`UPDATE appointments SET active=false, updated_at=NOW() WHERE id=$1`, id)
	if err != nil {
		return false, translate("remove appointment", err)
	}
	return tag.RowsAffected() > 0, nil
}

const appointmentColumns = `a.id, a.scheduled_date, a.scheduled_time, a.diagnosis, a.prescription,
	a.room, a.status, a.patient_id, a.doctor_id, a.active, a.created_at, a.updated_at`

func scanAppointment(row pgx.Row, a *model.Appointment, extra ...any) error {
	dest := []any{&a.ID, &a.Date, &a.Time, &a.Diagnosis, &a.Prescription,
		&a.Room, &a.Status, &a.PatientID, &a.DoctorID, &a.Active, &a.CreatedAt, &a.UpdatedAt}
	return row.Scan(append(dest, extra...)...)
}

func (s *Store) GetAppointment(ctx context.Context, id int64) (*model.Appointment, error) {
	a := &model.Appointment{}
	err := scanAppointment(s.pool.QueryRow(ctx,
		`SELECT `+appointmentColumns+` FROM appointments a WHERE a.id = $1`, id), a)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.Invalid(apperr.NotFound, "appointment", "")
	}
	if err != nil {
		return nil, translate("get appointment", err)
	}
	return a, nil
}

// ListActiveAppointments returns active appointments with the names of the doctor and
// patient they reference.
func (s *Store) ListActiveAppointments(ctx context.Context) ([]model.AppointmentView, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+appointmentColumns+`, p.name, d.name
		 FROM appointments a
		 JOIN patients p ON p.id = a.patient_id
		 JOIN doctors d ON d.id = a.doctor_id
		 WHERE a.active
		 ORDER BY a.scheduled_date, a.scheduled_time, a.id`)
	if err != nil {
		return nil, translate("list appointments", err)
	}
	defer rows.Close()

	var out []model.AppointmentView
	for rows.Next() {
		var v model.AppointmentView
		if err := scanAppointment(rows, &v.Appointment, &v.PatientName, &v.DoctorName); err != nil {
			return nil, translate("list appointments", err)
		}
		out = append(out, v)
	}
	return out, translate("list appointments", rows.Err())
}
