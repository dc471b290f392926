package bins

import (
	"errors"
	"strings"
	"time"

	"github.com/cleancity/wastetrack/internal/validation"
)

// Capacity is the size class of a bin.
type Capacity string

const (
	CapacitySmall  Capacity = "small"
	CapacityMedium Capacity = "medium"
	CapacityLarge  Capacity = "large"
)

// IsValid checks if the capacity is valid
func (c Capacity) IsValid() bool {
	switch c {
	case CapacitySmall, CapacityMedium, CapacityLarge:
		return true
	default:
		return false
	}
}

// Status marks whether a bin is in service.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// IsValid checks if the status is valid
func (s Status) IsValid() bool {
	return s == StatusActive || s == StatusInactive
}

// Bin is a public waste collection point.
type Bin struct {
	ID        string    `json:"id" yaml:"-"`
	Location  string    `json:"location" yaml:"location"`
	Area      string    `json:"area" yaml:"area"`
	Locality  *string   `json:"locality" yaml:"locality,omitempty"`
	Capacity  Capacity  `json:"capacity" yaml:"capacity"`
	Status    Status    `json:"status" yaml:"status"`
	CreatedAt time.Time `json:"created_at" yaml:"-"`
	UpdatedAt time.Time `json:"updated_at" yaml:"-"`
}

var ErrNotFound = errors.New("bins: bin not found")

// Input carries the editable bin fields.
type Input struct {
	Location string   `yaml:"location"`
	Area     string   `yaml:"area"`
	Locality string   `yaml:"locality"`
	Capacity Capacity `yaml:"capacity"`
	Status   Status   `yaml:"status"`
}

// Normalize trims the input, applies defaults and validates it.
func (in Input) Normalize() (Input, validation.Errors) {
	out := Input{
		Location: strings.TrimSpace(in.Location),
		Area:     strings.TrimSpace(in.Area),
		Locality: strings.TrimSpace(in.Locality),
		Capacity: Capacity(strings.ToLower(strings.TrimSpace(string(in.Capacity)))),
		Status:   Status(strings.ToLower(strings.TrimSpace(string(in.Status)))),
	}
	if out.Capacity == "" {
		out.Capacity = CapacityMedium
	}
	if out.Status == "" {
		out.Status = StatusActive
	}
	errs := validation.Errors{}
	errs.Check("location", validation.Required(out.Location))
	errs.Check("area", validation.Required(out.Area))
	if !out.Capacity.IsValid() {
		errs.Add("capacity", "must be one of: small medium large")
	}
	if !out.Status.IsValid() {
		errs.Add("status", "must be one of: active inactive")
	}
	return out, errs
}

func (in Input) apply(b Bin) Bin {
	b.Location = in.Location
	b.Area = in.Area
	b.Locality = nil
	if in.Locality != "" {
		locality := in.Locality
		b.Locality = &locality
	}
	b.Capacity = in.Capacity
	b.Status = in.Status
	return b
}
