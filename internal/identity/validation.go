// Copyright 2026 The Parishauth Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package identity

import (
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// RegisterInput carries the data needed to create a parish identity.
type RegisterInput struct {
	Email    string
	Password string
	Profile  Profile
}

// CredentialsUpdate holds the login fields a super admin may overwrite.
// Nil or empty fields are left unchanged.
type CredentialsUpdate struct {
	Email    *string
	Password *string
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(email string) error {
	if err := validation.Validate(email, validation.Required, validation.Length(3, 254), is.Email); err != nil {
		return fmt.Errorf("%w: email: %v", ErrInvalidInput, err)
	}
	return nil
}

func validateProfile(p *Profile) error {
	err := validation.ValidateStruct(p,
		validation.Field(&p.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&p.City, validation.Required, validation.Length(1, 120)),
		validation.Field(&p.Region, validation.Length(0, 120)),
		validation.Field(&p.Address, validation.Length(0, 255)),
		validation.Field(&p.Phone, validation.Length(0, 40)),
		validation.Field(&p.ContactEmail, is.Email),
		validation.Field(&p.Website, is.URL),
		validation.Field(&p.DioceseID, validation.Min(int64(1))),
		validation.Field(&p.Latitude, validation.Min(-90.0), validation.Max(90.0)),
		validation.Field(&p.Longitude, validation.Min(-180.0), validation.Max(180.0)),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}

func (s *Service) validatePassword(password string) error {
	if password == "" {
		return fmt.Errorf("%w: password: cannot be blank", ErrInvalidInput)
	}
	if len(password) < s.minPasswordLength {
		return ErrWeakPassword
	}
	return nil
}

func (s *Service) validateRegistration(in *RegisterInput) error {
	in.Email = normalizeEmail(in.Email)
	if err := validateEmail(in.Email); err != nil {
		return err
	}
	if err := s.validatePassword(in.Password); err != nil {
		return err
	}
	return validateProfile(&in.Profile)
}
