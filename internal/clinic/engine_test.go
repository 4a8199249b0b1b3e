package clinic

import (
	"context"
	"errors"
	"sync"
	"testing"

	"clinic-records-api/internal/apperr"
)

func validInput(doctorID, patientID int64) AppointmentInput {
	return AppointmentInput{
		Date: "2026-11-03", Time: "09:30", Room: "12",
		DoctorID: doctorID, PatientID: patientID,
	}
}

func TestScheduleAppointment(t *testing.T) {
	repo := newMemRepo()
	repo.addDoctor(1, true)
	repo.addPatient(2, true)
	e := NewEngine(repo)

	a, err := e.ScheduleAppointment(context.Background(), validInput(1, 2))
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if !a.Active {
		t.Error("new appointment should be active")
	}
	if a.Status != "scheduled" {
		t.Errorf("status: got %q", a.Status)
	}
	if got := a.Date.Format("2006-01-02"); got != "2026-11-03" {
		t.Errorf("date: got %s", got)
	}
}

func TestScheduleRejectsBadReferences(t *testing.T) {
	tests := []struct {
		name      string
		doctorOK  bool
		patientOK bool
		doctorID  int64
		patientID int64
		want      error
		field     string
	}{
		{"inactive doctor", false, true, 1, 2, apperr.ErrInactiveReference, "doctorId"},
		{"inactive patient", true, false, 1, 2, apperr.ErrInactiveReference, "patientId"},
		{"unknown doctor", true, true, 9, 2, apperr.ErrNotFound, "doctorId"},
		{"unknown patient", true, true, 1, 9, apperr.ErrNotFound, "patientId"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMemRepo()
			repo.addDoctor(1, tt.doctorOK)
			repo.addPatient(2, tt.patientOK)
			e := NewEngine(repo)

			_, err := e.ScheduleAppointment(context.Background(), validInput(tt.doctorID, tt.patientID))
			if !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
			var ve *apperr.ValidationError
			if errors.As(err, &ve) && ve.Field != tt.field {
				t.Errorf("field: got %q, want %q", ve.Field, tt.field)
			}
			if len(repo.appointments) != 0 {
				t.Errorf("rejected schedule created %d rows", len(repo.appointments))
			}
		})
	}
}

func TestScheduleMalformedInput(t *testing.T) {
	repo := newMemRepo()
	repo.addDoctor(1, true)
	repo.addPatient(2, true)
	e := NewEngine(repo)

	tests := []struct {
		name string
		in   AppointmentInput
	}{
		{"missing date", AppointmentInput{Time: "09:30", DoctorID: 1, PatientID: 2}},
		{"bad date", AppointmentInput{Date: "03/11/2026", Time: "09:30", DoctorID: 1, PatientID: 2}},
		{"bad time", AppointmentInput{Date: "2026-11-03", Time: "9h30", DoctorID: 1, PatientID: 2}},
		{"negative doctor", AppointmentInput{Date: "2026-11-03", Time: "09:30", DoctorID: -1, PatientID: 2}},
		{"patient id past exact range", AppointmentInput{Date: "2026-11-03", Time: "09:30", DoctorID: 1, PatientID: apperr.MaxID + 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.ScheduleAppointment(context.Background(), tt.in)
			if !errors.Is(err, apperr.ErrMalformedInput) {
				t.Errorf("got %v, want malformed input", err)
			}
		})
	}
}

func TestDeactivateDoctorCascades(t *testing.T) {
	repo := newMemRepo()
	repo.addDoctor(1, true)
	repo.addDoctor(3, true)
	repo.addPatient(2, true)
	e := NewEngine(repo)
	ctx := context.Background()

	a1, _ := e.ScheduleAppointment(ctx, validInput(1, 2))
	a2, _ := e.ScheduleAppointment(ctx, validInput(1, 2))
	keep, _ := e.ScheduleAppointment(ctx, validInput(3, 2))

	res, err := e.DeactivateDoctor(ctx, 1)
	if err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if res.Outcome != Deactivated || res.Cascaded != 2 {
		t.Errorf("result: got %+v", res)
	}
	if repo.doctors[1].Active {
		t.Error("doctor still active")
	}
	for _, id := range []int64{a1.ID, a2.ID} {
		if a, _ := repo.appointment(id); a.Active {
			t.Errorf("appointment %d still active", id)
		}
	}
	if a, _ := repo.appointment(keep.ID); !a.Active {
		t.Error("unrelated appointment was deactivated")
	}
}

func TestDeactivatePatientCascades(t *testing.T) {
	repo := newMemRepo()
	repo.addDoctor(1, true)
	repo.addPatient(2, true)
	e := NewEngine(repo)
	ctx := context.Background()

	a, _ := e.ScheduleAppointment(ctx, validInput(1, 2))
	res, err := e.DeactivatePatient(ctx, 2)
	if err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if res.Outcome != Deactivated || res.Cascaded != 1 {
		t.Errorf("result: got %+v", res)
	}
	if got, _ := repo.appointment(a.ID); got.Active {
		t.Error("appointment still active")
	}
}

func TestDeactivateNotFound(t *testing.T) {
	e := NewEngine(newMemRepo())

	res, err := e.DeactivateDoctor(context.Background(), 42)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Outcome != NotFound {
		t.Errorf("outcome: got %s", res.Outcome)
	}

	res, err = e.DeactivatePatient(context.Background(), 42)
	if err != nil || res.Outcome != NotFound {
		t.Errorf("patient: got %+v, %v", res, err)
	}
}

func TestDeactivateIsAtomic(t *testing.T) {
	repo := newMemRepo()
	repo.addDoctor(1, true)
	repo.addPatient(2, true)
	e := NewEngine(repo)
	ctx := context.Background()

	a, _ := e.ScheduleAppointment(ctx, validInput(1, 2))

	repo.failOn = "DeactivateAppointmentsByDoctor"
	repo.storeErr = apperr.Storage(apperr.Unavailable, "cascade doctor", errors.New("connection reset"))

	_, err := e.DeactivateDoctor(ctx, 1)
	if !errors.Is(err, apperr.ErrUnavailable) {
		t.Fatalf("got %v, want storage unavailable", err)
	}
	if !repo.doctors[1].Active {
		t.Error("doctor deactivated although the cascade failed")
	}
	if got, _ := repo.appointment(a.ID); !got.Active {
		t.Error("appointment changed although the cascade failed")
	}
}

func TestUpdateAppointment(t *testing.T) {
	repo := newMemRepo()
	repo.addDoctor(1, true)
	repo.addDoctor(3, true)
	repo.addPatient(2, true)
	e := NewEngine(repo)
	ctx := context.Background()

	a, _ := e.ScheduleAppointment(ctx, validInput(1, 2))

	in := validInput(3, 2)
	in.Diagnosis = "flu"
	out, err := e.UpdateAppointment(ctx, a.ID, in)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if out != Updated {
		t.Errorf("outcome: got %s", out)
	}
	got, _ := repo.appointment(a.ID)
	if got.DoctorID != 3 || got.Diagnosis != "flu" || !got.Active {
		t.Errorf("after update: %+v", got)
	}

	out, err = e.UpdateAppointment(ctx, 9999, in)
	if err != nil || out != NotFound {
		t.Errorf("unknown appointment: got %s, %v", out, err)
	}
}

func TestRemoveAppointment(t *testing.T) {
	repo := newMemRepo()
	repo.addDoctor(1, true)
	repo.addPatient(2, true)
	e := NewEngine(repo)
	ctx := context.Background()

	a, _ := e.ScheduleAppointment(ctx, validInput(1, 2))
	out, err := e.RemoveAppointment(ctx, a.ID)
	if err != nil || out != Deactivated {
		t.Fatalf("remove: got %s, %v", out, err)
	}
	if got, _ := repo.appointment(a.ID); got.Active {
		t.Error("appointment still active")
	}
	if out, _ := e.RemoveAppointment(ctx, 9999); out != NotFound {
		t.Errorf("unknown: got %s", out)
	}
}

func TestListActiveAppointments(t *testing.T) {
	repo := newMemRepo()
	repo.addDoctor(1, true)
	repo.addPatient(2, true)
	e := NewEngine(repo)
	ctx := context.Background()

	list, err := e.ListActiveAppointments(ctx)
	if err != nil || list == nil || len(list) != 0 {
		t.Fatalf("empty list: got %v, %v", list, err)
	}

	a, _ := e.ScheduleAppointment(ctx, validInput(1, 2))
	b, _ := e.ScheduleAppointment(ctx, validInput(1, 2))
	_, _ = e.RemoveAppointment(ctx, b.ID)

	list, _ = e.ListActiveAppointments(ctx)
	if len(list) != 1 || list[0].ID != a.ID {
		t.Fatalf("got %+v", list)
	}
	if list[0].DoctorName != "Doctor" || list[0].PatientName != "Patient" {
		t.Errorf("names: %s/%s", list[0].DoctorName, list[0].PatientName)
	}
}

func TestConcurrentDeactivateAndUpdate(t *testing.T) {
	for i := 0; i < 50; i++ {
		repo := newMemRepo()
		repo.addDoctor(1, true)
		repo.addDoctor(3, true)
		repo.addPatient(2, true)
		e := NewEngine(repo)
		ctx := context.Background()

		a, err := e.ScheduleAppointment(ctx, validInput(3, 2))
		if err != nil {
			t.Fatalf("schedule: %v", err)
		}

		var wg sync.WaitGroup
		var updateErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = e.DeactivateDoctor(ctx, 1)
		}()
		go func() {
			defer wg.Done()
			_, updateErr = e.UpdateAppointment(ctx, a.ID, validInput(1, 2))
		}()
		wg.Wait()

		if updateErr != nil && !errors.Is(updateErr, apperr.ErrInactiveReference) {
			t.Fatalf("update failed with %v", updateErr)
		}
		got, _ := repo.appointment(a.ID)
		if got.Active && got.DoctorID == 1 {
			t.Fatalf("round %d: active appointment references inactive doctor", i)
		}
	}
}

// Login is covered in the auth package; this walks the engine half of the scenario.
func TestScenarioScheduleDeactivateUpdate(t *testing.T) {
	repo := newMemRepo()
	repo.addDoctor(1, true)
	repo.addPatient(2, true)
	e := NewEngine(repo)
	ctx := context.Background()

	a, err := e.ScheduleAppointment(ctx, validInput(1, 2))
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if !a.Active {
		t.Fatal("new appointment should be active")
	}

	if _, err := e.DeactivateDoctor(ctx, 1); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if got, _ := repo.appointment(a.ID); got.Active {
		t.Fatal("appointment should be inactive")
	}

	_, err = e.UpdateAppointment(ctx, a.ID, validInput(1, 2))
	if !errors.Is(err, apperr.ErrInactiveReference) {
		t.Errorf("got %v, want inactive reference", err)
	}
}
