// Package handler implements clinic.v1.ClinicService. Messages travel as
// google.protobuf.Struct so the same methods serve gRPC, gRPC-Web and the REST gateway.
package handler

import (
	"context"

	"clinic-records-api/internal/auth"
	"clinic-records-api/internal/clinic"
	"clinic-records-api/internal/model"
)

type AccountService interface {
	Login(ctx context.Context, login, secret string) (*auth.LoginResult, error)
	Register(ctx context.Context, in auth.RegisterInput) (*model.Account, error)
	ListAccounts(ctx context.Context) ([]model.Account, error)
	ChangeSecret(ctx context.Context, secret string) error
	SetProfileImage(ctx context.Context, ref string) error
}

type Engine interface {
	DeactivateDoctor(ctx context.Context, id int64) (clinic.Result, error)
	DeactivatePatient(ctx context.Context, id int64) (clinic.Result, error)
	ScheduleAppointment(ctx context.Context, in clinic.AppointmentInput) (*model.Appointment, error)
	UpdateAppointment(ctx context.Context, id int64, in clinic.AppointmentInput) (clinic.Outcome, error)
	RemoveAppointment(ctx context.Context, id int64) (clinic.Outcome, error)
	ListActiveAppointments(ctx context.Context) ([]model.AppointmentView, error)
}

type Records interface {
	RegisterDoctor(ctx context.Context, in clinic.DoctorInput) (*model.Doctor, error)
	UpdateDoctor(ctx context.Context, id int64, in clinic.DoctorInput) (clinic.Outcome, error)
	GetDoctor(ctx context.Context, id int64) (*model.Doctor, error)
	ListDoctors(ctx context.Context) ([]model.Doctor, error)
	RegisterPatient(ctx context.Context, in clinic.PatientInput) (*model.Patient, error)
	UpdatePatient(ctx context.Context, id int64, in clinic.PatientInput) (clinic.Outcome, error)
	GetPatient(ctx context.Context, id int64) (*model.Patient, error)
	ListPatients(ctx context.Context) ([]model.Patient, error)
}

type Handler struct {
	accounts AccountService
	engine   Engine
	records  Records
}

func New(accounts AccountService, engine Engine, records Records) *Handler {
	return &Handler{accounts: accounts, engine: engine, records: records}
}
