// Package clinic keeps appointments consistent with the doctors and patients they
// reference. Engine is the only writer of the active flag.
package clinic

import (
	"context"
	"log"
	"time"

	"clinic-records-api/internal/apperr"
	"clinic-records-api/internal/auth"
	"clinic-records-api/internal/model"
	"clinic-records-api/internal/store"
)

type Repository interface {
	InTx(ctx context.Context, fn func(store.Querier) error) error
	ListActiveAppointments(ctx context.Context) ([]model.AppointmentView, error)
}

type Outcome string

const (
	Deactivated Outcome = "deactivated"
	Updated     Outcome = "updated"
	NotFound    Outcome = "not_found"
)

type Result struct {
	Outcome  Outcome `json:"outcome"`
	Cascaded int64   `json:"cascaded"`
}

const defaultStatus = "scheduled"

// AppointmentInput is the client-facing shape of an appointment. Date is
// YYYY-MM-DD and Time is HH:MM.
type AppointmentInput struct {
	Date         string `json:"date" validate:"required,datetime=2006-01-02"`
	Time         string `json:"time" validate:"required,datetime=15:04"`
	Diagnosis    string `json:"diagnosis" validate:"max=2000"`
	Prescription string `json:"prescription" validate:"max=2000"`
	Room         string `json:"room" validate:"max=64"`
	Status       string `json:"status" validate:"max=32"`
	PatientID    int64  `json:"patientId" validate:"min=0,max=9007199254740991"`
	DoctorID     int64  `json:"doctorId" validate:"min=0,max=9007199254740991"`
}

func (in AppointmentInput) toModel() (*model.Appointment, error) {
	if err := apperr.Validate(in); err != nil {
		return nil, err
	}
	date, err := time.Parse(time.DateOnly, in.Date)
	if err != nil {
		return nil, apperr.Invalid(apperr.MalformedInput, "date", "expected YYYY-MM-DD")
	}
	status := in.Status
	if status == "" {
		status = defaultStatus
	}
	return &model.Appointment{
		Date:         date,
		Time:         in.Time,
		Diagnosis:    in.Diagnosis,
		Prescription: in.Prescription,
		Room:         in.Room,
		Status:       status,
		PatientID:    in.PatientID,
		DoctorID:     in.DoctorID,
	}, nil
}

type Engine struct {
	repo Repository
}

func NewEngine(repo Repository) *Engine {
	return &Engine{repo: repo}
}

// DeactivateDoctor marks the doctor inactive together with every active appointment
// that references it, in one transaction. An unknown id is a NotFound outcome, not
// an error.
func (e *Engine) DeactivateDoctor(ctx context.Context, id int64) (Result, error) {
	if err := checkID(id); err != nil {
		return Result{}, err
	}
	res := Result{Outcome: NotFound}
	err := e.repo.InTx(ctx, func(q store.Querier) error {
		found, err := q.DeactivateDoctor(ctx, id)
		if err != nil || !found {
			return err
		}
		n, err := q.DeactivateAppointmentsByDoctor(ctx, id)
		if err != nil {
			return err
		}
		res = Result{Outcome: Deactivated, Cascaded: n}
		return nil
	})
	if err != nil {
		log.Printf("deactivate doctor %d by %s: %v", id, auth.ActorID(ctx), err)
		return Result{}, err
	}
	if res.Outcome == Deactivated {
		log.Printf("doctor %d deactivated by %s, %d appointments cascaded", id, auth.ActorID(ctx), res.Cascaded)
	}
	return res, nil
}

// DeactivatePatient is the patient-side counterpart of DeactivateDoctor.
func (e *Engine) DeactivatePatient(ctx context.Context, id int64) (Result, error) {
	if err := checkID(id); err != nil {
		return Result{}, err
	}
	res := Result{Outcome: NotFound}
	err := e.repo.InTx(ctx, func(q store.Querier) error {
		found, err := q.DeactivatePatient(ctx, id)
		if err != nil || !found {
			return err
		}
		n, err := q.DeactivateAppointmentsByPatient(ctx, id)
		if err != nil {
			return err
		}
		res = Result{Outcome: Deactivated, Cascaded: n}
		return nil
	})
	if err != nil {
		log.Printf("deactivate patient %d by %s: %v", id, auth.ActorID(ctx), err)
		return Result{}, err
	}
	if res.Outcome == Deactivated {
		log.Printf("patient %d deactivated by %s, %d appointments cascaded", id, auth.ActorID(ctx), res.Cascaded)
	}
	return res, nil
}

// ScheduleAppointment creates an active appointment. Both references must exist and
// be active at commit time; otherwise nothing is written.
func (e *Engine) ScheduleAppointment(ctx context.Context, in AppointmentInput) (*model.Appointment, error) {
	a, err := in.toModel()
	if err != nil {
		return nil, err
	}
	err = e.repo.InTx(ctx, func(q store.Querier) error {
		if err := checkReferences(ctx, q, a.DoctorID, a.PatientID); err != nil {
			return err
		}
		return q.InsertAppointment(ctx, a)
	})
	if err != nil {
		return nil, err
	}
	log.Printf("appointment %d scheduled by %s", a.ID, auth.ActorID(ctx))
	return a, nil
}

// UpdateAppointment rewrites an appointment's fields under the same reference rules as
// scheduling. The active flag is left as it is.
func (e *Engine) UpdateAppointment(ctx context.Context, id int64, in AppointmentInput) (Outcome, error) {
	if err := checkID(id); err != nil {
		return "", err
	}
	a, err := in.toModel()
	if err != nil {
		return "", err
	}
	a.ID = id

	outcome := NotFound
	err = e.repo.InTx(ctx, func(q store.Querier) error {
		// existence is checked before any lock so the lock order matches deactivation
		exists, err := q.AppointmentExists(ctx, id)
		if err != nil || !exists {
			return err
		}
		if err := checkReferences(ctx, q, a.DoctorID, a.PatientID); err != nil {
			return err
		}
		ok, err := q.UpdateAppointment(ctx, a)
		if err != nil {
			return err
		}
		if ok {
			outcome = Updated
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return outcome, nil
}

// RemoveAppointment soft-deletes a single appointment.
func (e *Engine) RemoveAppointment(ctx context.Context, id int64) (Outcome, error) {
	if err := checkID(id); err != nil {
		return "", err
	}
	outcome := NotFound
	err := e.repo.InTx(ctx, func(q store.Querier) error {
		ok, err := q.DeactivateAppointment(ctx, id)
		if ok {
			outcome = Deactivated
		}
		return err
	})
	if err != nil {
		return "", err
	}
	if outcome == Deactivated {
		log.Printf("appointment %d removed by %s", id, auth.ActorID(ctx))
	}
	return outcome, nil
}

func (e *Engine) ListActiveAppointments(ctx context.Context) ([]model.AppointmentView, error) {
	out, err := e.repo.ListActiveAppointments(ctx)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []model.AppointmentView{}
	}
	return out, nil
}

func checkReferences(ctx context.Context, q store.Querier, doctorID, patientID int64) error {
	ds, err := q.DoctorState(ctx, doctorID)
	if err != nil {
		return err
	}
	if err := refError("doctorId", "doctor", ds); err != nil {
		return err
	}
	ps, err := q.PatientState(ctx, patientID)
	if err != nil {
		return err
	}
	return refError("patientId", "patient", ps)
}

func refError(field, what string, s store.RefState) error {
	switch s {
	case store.RefMissing:
		return apperr.Invalid(apperr.NotFound, field, what+" does not exist")
	case store.RefInactive:
		return apperr.Invalid(apperr.InactiveReference, field, what+" is inactive")
	}
	return nil
}
