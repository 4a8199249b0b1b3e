package handler

import (
	"context"

	"google.golang.org/protobuf/types/known/structpb"

	"clinic-records-api/internal/clinic"
)

func (h *Handler) RegisterDoctor(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in clinic.DoctorInput
	if err := decode(req, &in); err != nil {
		return nil, logged("register doctor", err)
	}
	d, err := h.records.RegisterDoctor(ctx, in)
	if err != nil {
		return nil, logged("register doctor", err)
	}
	return encode(d)
}

func (h *Handler) UpdateDoctor(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := idFrom(req, "id")
	if err != nil {
		return nil, logged("update doctor", err)
	}
	var in clinic.DoctorInput
	if err := decode(req, &in); err != nil {
		return nil, logged("update doctor", err)
	}
	out, err := h.records.UpdateDoctor(ctx, id, in)
	if err != nil {
		return nil, logged("update doctor", err)
	}
	return encode(map[string]any{"outcome": out})
}

// RemoveDoctor deactivates the doctor and cascades to its appointments.
func (h *Handler) RemoveDoctor(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := idFrom(req, "id")
	if err != nil {
		return nil, logged("remove doctor", err)
	}
	res, err := h.engine.DeactivateDoctor(ctx, id)
	if err != nil {
		return nil, logged("remove doctor", err)
	}
	return encode(res)
}

func (h *Handler) GetDoctor(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := idFrom(req, "id")
	if err != nil {
		return nil, logged("get doctor", err)
	}
	d, err := h.records.GetDoctor(ctx, id)
	if err != nil {
		return nil, logged("get doctor", err)
	}
	return encode(d)
}

func (h *Handler) ListDoctors(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	list, err := h.records.ListDoctors(ctx)
	if err != nil {
		return nil, logged("list doctors", err)
	}
	return encode(items(list))
}
