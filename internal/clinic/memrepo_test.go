package clinic

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"clinic-records-api/internal/model"
	"clinic-records-api/internal/store"
)

// memRepo is an in-memory Repository. InTx serializes transactions and restores the
// previous state when fn fails, which is enough to observe atomicity.
type memRepo struct {
	mu           sync.Mutex
	doctors      map[int64]model.Doctor
	patients     map[int64]model.Patient
	appointments map[int64]model.Appointment
	nextID       int64

	failOn string // Querier method name that returns storeErr
	storeErr error
}

func newMemRepo() *memRepo {
	return &memRepo{
		doctors:      map[int64]model.Doctor{},
		patients:     map[int64]model.Patient{},
		appointments: map[int64]model.Appointment{},
		nextID:       100,
	}
}

func (r *memRepo) addDoctor(id int64, active bool) {
	r.doctors[id] = model.Doctor{ID: id, Name: "Doctor", Active: active}
}

func (r *memRepo) addPatient(id int64, active bool) {
	r.patients[id] = model.Patient{ID: id, Name: "Patient", Active: active}
}

func (r *memRepo) appointment(id int64) (model.Appointment, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	return a, ok
}

func (r *memRepo) InTx(ctx context.Context, fn func(store.Querier) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doctors := maps.Clone(r.doctors)
	patients := maps.Clone(r.patients)
	appointments := maps.Clone(r.appointments)
	nextID := r.nextID

	if err := fn(&memTx{r: r}); err != nil {
		r.doctors, r.patients, r.appointments, r.nextID = doctors, patients, appointments, nextID
		return err
	}
	return nil
}

func (r *memRepo) ListActiveAppointments(ctx context.Context) ([]model.AppointmentView, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.AppointmentView
	for _, a := range r.appointments {
		if !a.Active {
			continue
		}
		out = append(out, model.AppointmentView{
			Appointment: a,
			DoctorName:  r.doctors[a.DoctorID].Name,
			PatientName: r.patients[a.PatientID].Name,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type memTx struct {
	r *memRepo
}

func (t *memTx) fail(method string) error {
	if t.r.failOn == method {
		return t.r.storeErr
	}
	return nil
}

func (t *memTx) DeactivateDoctor(_ context.Context, id int64) (bool, error) {
	if err := t.fail("DeactivateDoctor"); err != nil {
		return false, err
	}
	d, ok := t.r.doctors[id]
	if !ok {
		return false, nil
	}
	d.Active = false
	t.r.doctors[id] = d
	return true, nil
}

func (t *memTx) DeactivatePatient(_ context.Context, id int64) (bool, error) {
	if err := t.fail("DeactivatePatient"); err != nil {
		return false, err
	}
	p, ok := t.r.patients[id]
	if !ok {
		return false, nil
	}
	p.Active = false
	t.r.patients[id] = p
	return true, nil
}

func (t *memTx) cascade(match func(model.Appointment) bool) int64 {
	var n int64
	for id, a := range t.r.appointments {
		if a.Active && match(a) {
			a.Active = false
			t.r.appointments[id] = a
			n++
		}
	}
	return n
}

func (t *memTx) DeactivateAppointmentsByDoctor(_ context.Context, doctorID int64) (int64, error) {
	if err := t.fail("DeactivateAppointmentsByDoctor"); err != nil {
		return 0, err
	}
	return t.cascade(func(a model.Appointment) bool { return a.DoctorID == doctorID }), nil
}

func (t *memTx) DeactivateAppointmentsByPatient(_ context.Context, patientID int64) (int64, error) {
	if err := t.fail("DeactivateAppointmentsByPatient"); err != nil {
		return 0, err
	}
	return t.cascade(func(a model.Appointment) bool { return a.PatientID == patientID }), nil
}

func (t *memTx) DoctorState(_ context.Context, id int64) (store.RefState, error) {
	d, ok := t.r.doctors[id]
	return refState(ok, d.Active), nil
}

func (t *memTx) PatientState(_ context.Context, id int64) (store.RefState, error) {
	p, ok := t.r.patients[id]
	return refState(ok, p.Active), nil
}

func refState(exists, active bool) store.RefState {
	switch {
	case !exists:
		return store.RefMissing
	case !active:
		return store.RefInactive
	}
	return store.RefActive
}

func (t *memTx) AppointmentExists(_ context.Context, id int64) (bool, error) {
	_, ok := t.r.appointments[id]
	return ok, nil
}

func (t *memTx) InsertAppointment(_ context.Context, a *model.Appointment) error {
	if err := t.fail("InsertAppointment"); err != nil {
		return err
	}
	t.r.nextID++
	a.ID = t.r.nextID
	a.Active = true
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	t.r.appointments[a.ID] = *a
	return nil
}

func (t *memTx) UpdateAppointment(_ context.Context, a *model.Appointment) (bool, error) {
	cur, ok := t.r.appointments[a.ID]
	if !ok {
		return false, nil
	}
	next := *a
	next.Active = cur.Active
	next.CreatedAt = cur.CreatedAt
	t.r.appointments[a.ID] = next
	return true, nil
}

func (t *memTx) DeactivateAppointment(_ context.Context, id int64) (bool, error) {
	a, ok := t.r.appointments[id]
	if !ok {
		return false, nil
	}
	a.Active = false
	t.r.appointments[id] = a
	return true, nil
}
