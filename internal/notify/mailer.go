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

package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"strings"

	"github.com/horaires-messes/parishauth/internal/identity"
	"github.com/horaires-messes/parishauth/internal/observability/logger"
)

var (
	submittedTmpl = template.Must(template.New("submitted").Parse(`
<h2>Nouvelle demande d'inscription</h2>
<p>Une nouvelle paroisse souhaite s'inscrire sur la plateforme :</p>
<ul>
  <li><strong>Nom :</strong> {{.Name}}</li>
  <li><strong>Ville :</strong> {{.City}}</li>
  <li><strong>Email admin :</strong> {{.Email}}</li>
</ul>
<p>Connectez-vous au tableau de bord pour approuver ou rejeter cette demande.</p>
<p><a href="{{.FrontendURL}}/admin">Accéder au tableau de bord</a></p>
`))

	approvedTmpl = template.Must(template.New("approved").Parse(`
<h2>Votre inscription a été approuvée !</h2>
<p>Bonne nouvelle ! Votre paroisse <strong>{{.Name}}</strong> a été approuvée
sur la plateforme Horaires des Messes au Sénégal.</p>
<p>Vous pouvez maintenant vous connecter pour gérer vos horaires de messe et vos actualités paroissiales.</p>
<p><a href="{{.FrontendURL}}/admin/login">Se connecter</a></p>
<p>Utilisez l'adresse email <strong>{{.Email}}</strong> et le mot de passe que vous avez choisi lors de l'inscription.</p>
`))

	rejectedTmpl = template.Must(template.New("rejected").Parse(`
<h2>Votre demande d'inscription n'a pas été approuvée</h2>
<p>Nous sommes désolés de vous informer que la demande d'inscription pour la paroisse
<strong>{{.Name}}</strong> n'a pas été approuvée.</p>
<p>Si vous pensez qu'il s'agit d'une erreur, veuillez contacter l'administrateur principal.</p>
`))
)

// MailerConfig holds the addresses used in notifications
type MailerConfig struct {
	// AdminContact receives new registration alerts
	AdminContact string
	FrontendURL  string
}

// Mailer renders registration workflow emails and hands them to a Sender
type Mailer struct {
	sender Sender
	cfg    MailerConfig
}

var _ identity.Notifier = (*Mailer)(nil)

// NewMailer creates a new mailer
func NewMailer(sender Sender, cfg MailerConfig) *Mailer {
	cfg.FrontendURL = strings.TrimRight(cfg.FrontendURL, "/")
	return &Mailer{sender: sender, cfg: cfg}
}

type mailData struct {
	Name        string
	City        string
	Email       string
	FrontendURL string
}

func (m *Mailer) data(ident *identity.Identity) mailData {
	return mailData{
		Name:        ident.Profile.Name,
		City:        ident.Profile.City,
		Email:       ident.Email,
		FrontendURL: m.cfg.FrontendURL,
	}
}

// RegistrationSubmitted alerts the super admin contact of a new pending parish
func (m *Mailer) RegistrationSubmitted(ctx context.Context, ident *identity.Identity) error {
	if m.cfg.AdminContact == "" {
		slog.WarnContext(ctx, "admin contact not configured, registration alert skipped",
			logger.Component("notify"),
			logger.ParishID(ident.ID),
		)
		return nil
	}
	return m.send(ctx, m.cfg.AdminContact, "Nouvelle inscription : "+ident.Profile.Name, submittedTmpl, ident)
}

// RegistrationApproved tells the parish it can now log in
func (m *Mailer) RegistrationApproved(ctx context.Context, ident *identity.Identity) error {
	return m.send(ctx, ident.Email, "Inscription approuvée : "+ident.Profile.Name, approvedTmpl, ident)
}

// RegistrationRejected tells the applicant the request was declined
func (m *Mailer) RegistrationRejected(ctx context.Context, ident *identity.Identity) error {
	return m.send(ctx, ident.Email, "Inscription non approuvée : "+ident.Profile.Name, rejectedTmpl, ident)
}

func (m *Mailer) send(ctx context.Context, to, subject string, tmpl *template.Template, ident *identity.Identity) error {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, m.data(ident)); err != nil {
		return fmt.Errorf("failed to render %s email: %w", tmpl.Name(), err)
	}
	return m.sender.Send(ctx, Message{To: to, Subject: subject, HTML: buf.String()})
}
