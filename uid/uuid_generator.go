package uid

import (
	"encoding/hex"
	"reflect"

	"github.com/google/uuid"
)

type UUIDOptions struct {
	Version     string `cfg:"version" def:"v4" validate:"oneof=v1 v4 v6 v7"`
	WithHyphens bool   `cfg:"withHyphens"`
}

type UUIDGenerator struct {
	version     string
	withHyphens bool
}

func NewUUIDGeneratorWithOptions(options *UUIDOptions) *UUIDGenerator {
	if options == nil {
		options = &UUIDOptions{Version: "v4"}
	}
	version := options.Version
	if version == "" {
		version = "v4"
	}

	return &UUIDGenerator{
		version:     version,
		withHyphens: options.WithHyphens,
	}
}

func (g *UUIDGenerator) Kind() reflect.Kind {
	return reflect.String
}

func (g *UUIDGenerator) Generate() any {
	return g.GenerateString()
}

func (g *UUIDGenerator) GenerateString() string {
	var u uuid.UUID
	switch g.version {
	case "v1":
		u = uuid.Must(uuid.NewUUID())
	case "v6":
		u = uuid.Must(uuid.NewV6())
	case "v7":
		u = uuid.Must(uuid.NewV7())
	default:
		u = uuid.New()
	}

	if g.withHyphens {
		return u.String()
	}
	return hex.EncodeToString(u[:])
}
