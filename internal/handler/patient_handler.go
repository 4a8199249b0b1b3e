package handler

import (
	"context"

	"google.golang.org/protobuf/types/known/structpb"

	"clinic-records-api/internal/clinic"
)

func (h *Handler) RegisterPatient(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in clinic.PatientInput
	if err := decode(req, &in); err != nil {
		return nil, logged("register patient", err)
	}
	p, err := h.records.RegisterPatient(ctx, in)
	if err != nil {
		return nil, logged("register patient", err)
	}
	return encode(p)
}

func (h *Handler) UpdatePatient(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := idFrom(req, "id")
	if err != nil {
		return nil, logged("update patient", err)
	}
	var in clinic.PatientInput
	if err := decode(req, &in); err != nil {
		return nil, logged("update patient", err)
	}
	out, err := h.records.UpdatePatient(ctx, id, in)
	if err != nil {
		return nil, logged("update patient", err)
	}
	return encode(map[string]any{"outcome": out})
}

func (h *Handler) RemovePatient(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := idFrom(req, "id")
	if err != nil {
		return nil, logged("remove patient", err)
	}
	res, err := h.engine.DeactivatePatient(ctx, id)
	if err != nil {
		return nil, logged("remove patient", err)
	}
	return encode(res)
}

func (h *Handler) GetPatient(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := idFrom(req, "id")
	if err != nil {
		return nil, logged("get patient", err)
	}
	p, err := h.records.GetPatient(ctx, id)
	if err != nil {
		return nil, logged("get patient", err)
	}
	return encode(p)
}

func (h *Handler) ListPatients(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	list, err := h.records.ListPatients(ctx)
	if err != nil {
		return nil, logged("list patients", err)
	}
	return encode(items(list))
}
