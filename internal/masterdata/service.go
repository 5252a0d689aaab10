package masterdata

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"cbtsheet/internal/sheet"

	"github.com/go-playground/validator/v10"
)

var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrDuplicateNISN = errors.New("nisn already registered")
)

type sheetClient interface {
	Read(ctx context.Context, action string, params url.Values, out any) error
	ReadLenient(ctx context.Context, action string, params url.Values, out any) error
	Write(ctx context.Context, action string, fields map[string]any) sheet.WriteResult
}

// Service manages the mapel reference sheet and the student sheet.
type Service struct {
	sheet    sheetClient
	validate *validator.Validate
}

func NewService(client sheetClient) *Service {
	return &Service{sheet: client, validate: validator.New()}
}

func (s *Service) check(in any) error {
	if err := s.validate.Struct(in); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			fields := make([]string, 0, len(ve))
			for _, fe := range ve {
				fields = append(fields, fe.Field())
			}
			return fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}

func (s *Service) write(ctx context.Context, action string, fields map[string]any) error {
	res := s.sheet.Write(ctx, action, fields)
	if err := res.Failure(); err != nil {
		return fmt.Errorf("%s: %w", action, err)
	}
	return nil
}

func requireID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("%w: id is required", ErrInvalidInput)
	}
	return id, nil
}
