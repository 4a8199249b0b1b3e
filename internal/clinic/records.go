package clinic

import (
	"context"
	"time"

	"clinic-records-api/internal/apperr"
	"clinic-records-api/internal/model"
)

type RecordStore interface {
	CreateDoctor(ctx context.Context, d *model.Doctor) error
	UpdateDoctor(ctx context.Context, d *model.Doctor) (bool, error)
	GetDoctor(ctx context.Context, id int64) (*model.Doctor, error)
	ListDoctors(ctx context.Context) ([]model.Doctor, error)
	CreatePatient(ctx context.Context, p *model.Patient) error
	UpdatePatient(ctx context.Context, p *model.Patient) (bool, error)
	GetPatient(ctx context.Context, id int64) (*model.Patient, error)
	ListPatients(ctx context.Context) ([]model.Patient, error)
}

type DoctorInput struct {
	Name      string `json:"name" validate:"required,max=120"`
	Specialty string `json:"specialty" validate:"required,max=80"`
	License   string `json:"license" validate:"required,max=32"`
	Phone     string `json:"phone" validate:"max=32"`
	Email     string `json:"email" validate:"omitempty,email"`
}

type PatientInput struct {
	Name       string `json:"name" validate:"required,max=120"`
	NationalID string `json:"nationalId" validate:"required,max=32"`
	Phone      string `json:"phone" validate:"max=32"`
	Email      string `json:"email" validate:"omitempty,email"`
	BirthDate  string `json:"birthDate" validate:"required,datetime=2006-01-02"`
	Address    string `json:"address" validate:"max=200"`
}

// Records handles the plain doctor and patient reads and writes. It never changes
// the active flag.
type Records struct {
	store RecordStore
}

func NewRecords(st RecordStore) *Records {
	return &Records{store: st}
}

func (r *Records) RegisterDoctor(ctx context.Context, in DoctorInput) (*model.Doctor, error) {
	if err := apperr.Validate(in); err != nil {
		return nil, err
	}
	d := &model.Doctor{Name: in.Name, Specialty: in.Specialty, License: in.License, Phone: in.Phone, Email: in.Email}
	if err := r.store.CreateDoctor(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (r *Records) UpdateDoctor(ctx context.Context, id int64, in DoctorInput) (Outcome, error) {
	if err := checkID(id); err != nil {
		return "", err
	}
	if err := apperr.Validate(in); err != nil {
		return "", err
	}
	d := &model.Doctor{ID: id, Name: in.Name, Specialty: in.Specialty, License: in.License, Phone: in.Phone, Email: in.Email}
	ok, err := r.store.UpdateDoctor(ctx, d)
	if err != nil {
		return "", err
	}
	if !ok {
		return NotFound, nil
	}
	return Updated, nil
}

func (r *Records) GetDoctor(ctx context.Context, id int64) (*model.Doctor, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	return r.store.GetDoctor(ctx, id)
}

func (r *Records) ListDoctors(ctx context.Context) ([]model.Doctor, error) {
	out, err := r.store.ListDoctors(ctx)
	if out == nil && err == nil {
		out = []model.Doctor{}
	}
	return out, err
}

func (r *Records) RegisterPatient(ctx context.Context, in PatientInput) (*model.Patient, error) {
	p, err := in.toModel()
	if err != nil {
		return nil, err
	}
	if err := r.store.CreatePatient(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *Records) UpdatePatient(ctx context.Context, id int64, in PatientInput) (Outcome, error) {
	if err := checkID(id); err != nil {
		return "", err
	}
	p, err := in.toModel()
	if err != nil {
		return "", err
	}
	p.ID = id
	ok, err := r.store.UpdatePatient(ctx, p)
	if err != nil {
		return "", err
	}
	if !ok {
		return NotFound, nil
	}
	return Updated, nil
}

func (r *Records) GetPatient(ctx context.Context, id int64) (*model.Patient, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	return r.store.GetPatient(ctx, id)
}

func (r *Records) ListPatients(ctx context.Context) ([]model.Patient, error) {
	out, err := r.store.ListPatients(ctx)
	if out == nil && err == nil {
		out = []model.Patient{}
	}
	return out, err
}

func (in PatientInput) toModel() (*model.Patient, error) {
	if err := apperr.Validate(in); err != nil {
		return nil, err
	}
	birth, err := time.Parse(time.DateOnly, in.BirthDate)
	if err != nil {
		return nil, apperr.Invalid(apperr.MalformedInput, "birthDate", "expected YYYY-MM-DD")
	}
	return &model.Patient{
		Name:       in.Name,
		NationalID: in.NationalID,
		Phone:      in.Phone,
		Email:      in.Email,
		BirthDate:  birth,
		Address:    in.Address,
	}, nil
}

func checkID(id int64) error {
	if id < 0 || id > apperr.MaxID {
		return apperr.Invalid(apperr.MalformedInput, "id", "must be an integer in [0, 2^53)")
	}
	return nil
}
