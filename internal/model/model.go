package model

import (
	"time"

	"github.com/google/uuid"
)

type Account struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	Secret       string    `json:"-"`
	ProfileImage *string   `json:"profileImage,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type Doctor struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Specialty string    `json:"specialty"`
	License   string    `json:"license"`
	Phone     string    `json:"phone"`
	Email     string    `json:"email"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Patient struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	NationalID string    `json:"nationalId"`
	Phone      string    `json:"phone"`
	Email      string    `json:"email"`
	BirthDate  time.Time `json:"birthDate"`
	Address    string    `json:"address"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Appointment references exactly one patient and one doctor. Time is "HH:MM".
type Appointment struct {
	ID           int64     `json:"id"`
	Date         time.Time `json:"date"`
	Time         string    `json:"time"`
	Diagnosis    string    `json:"diagnosis"`
	Prescription string    `json:"prescription"`
	Room         string    `json:"room"`
	Status       string    `json:"status"`
	PatientID    int64     `json:"patientId"`
	DoctorID     int64     `json:"doctorId"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type AppointmentView struct {
	Appointment
	PatientName string `json:"patientName"`
	DoctorName  string `json:"doctorName"`
}
