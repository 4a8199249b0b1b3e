package handler

import (
	"context"

	"google.golang.org/protobuf/types/known/structpb"

	"clinic-records-api/internal/clinic"
)

func (h *Handler) ScheduleAppointment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in clinic.AppointmentInput
	if err := decode(req, &in); err != nil {
		return nil, logged("schedule appointment", err)
	}
	a, err := h.engine.ScheduleAppointment(ctx, in)
	if err != nil {
		return nil, logged("schedule appointment", err)
	}
	return encode(a)
}

func (h *Handler) UpdateAppointment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := idFrom(req, "id")
	if err != nil {
		return nil, logged("update appointment", err)
	}
	var in clinic.AppointmentInput
	if err := decode(req, &in); err != nil {
		return nil, logged("update appointment", err)
	}
	out, err := h.engine.UpdateAppointment(ctx, id, in)
	if err != nil {
		return nil, logged("update appointment", err)
	}
	return encode(map[string]any{"outcome": out})
}

func (h *Handler) RemoveAppointment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := idFrom(req, "id")
	if err != nil {
		return nil, logged("remove appointment", err)
	}
	out, err := h.engine.RemoveAppointment(ctx, id)
	if err != nil {
		return nil, logged("remove appointment", err)
	}
	return encode(map[string]any{"outcome": out})
}

// ListAppointments returns active appointments only, with doctor and patient names.
func (h *Handler) ListAppointments(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	list, err := h.engine.ListActiveAppointments(ctx)
	if err != nil {
		return nil, logged("list appointments", err)
	}
	return encode(items(list))
}
