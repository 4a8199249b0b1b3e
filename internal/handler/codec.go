package handler

import (
	"encoding/json"
	"errors"
	"log"
	"math"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"clinic-records-api/internal/apperr"
)

// decode copies the fields of req into dst through their JSON names.
func decode(req *structpb.Struct, dst any) error {
	if req == nil {
		req = &structpb.Struct{}
	}
	b, err := protojson.Marshal(req)
	if err != nil {
		return apperr.Invalid(apperr.MalformedInput, "", "unreadable request")
	}
	if err := json.Unmarshal(b, dst); err != nil {
		field := ""
		var te *json.UnmarshalTypeError
		if errors.As(err, &te) {
			field = te.Field
		}
		return apperr.Invalid(apperr.MalformedInput, field, "wrong type")
	}
	return nil
}

// encode turns v into a Struct by way of its JSON form.
func encode(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(b, out); err != nil {
		return nil, err
	}
	return out, nil
}

// items wraps a list, since a Struct cannot be a bare array.
func items[T any](list []T) map[string]any {
	return map[string]any{"items": list}
}

// idFrom reads an id in [0, apperr.MaxID] from req. Numeric strings are accepted.
// Larger numbers have already lost precision in transit, so they are rejected.
func idFrom(req *structpb.Struct, field string) (int64, error) {
	v, ok := req.GetFields()[field]
	if !ok {
		return 0, apperr.Invalid(apperr.MalformedInput, field, "required")
	}
	switch k := v.GetKind().(type) {
	case *structpb.Value_NumberValue:
		n := k.NumberValue
		if n < 0 || n != math.Trunc(n) || n > apperr.MaxID {
			return 0, apperr.Invalid(apperr.MalformedInput, field, "must be a non-negative integer")
		}
		return int64(n), nil
	case *structpb.Value_StringValue:
		return apperr.ParseID(field, k.StringValue)
	}
	return 0, apperr.Invalid(apperr.MalformedInput, field, "must be a non-negative integer")
}

// logged records system faults with their cause. Transports decide what the client
// sees.
func logged(op string, err error) error {
	if apperr.Classify(err) == apperr.ClassSystem {
		log.Printf("%s: %v", op, err)
	}
	return err
}
