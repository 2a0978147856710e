package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/pms-auth-service/internal/codestore"
	"github.com/iliyamo/pms-auth-service/internal/identity"
	"github.com/iliyamo/pms-auth-service/internal/logging"
	"github.com/iliyamo/pms-auth-service/internal/mailer"
)

// Payload keys carried from issuance to verification.
const (
	payloadPassword  = "password"
	payloadFirstName = "firstName"
	payloadLastName  = "lastName"
)

// Recipient selects who receives the code.
type Recipient int

const (
	// RecipientRequester mails the code to the address being verified.
	RecipientRequester Recipient = iota
	// RecipientAdmin mails it to an administrator who approves out-of-band.
	RecipientAdmin
)

// FlowMessages are the user-facing strings of one flow variant.
type FlowMessages struct {
	Sent        string
	MissingSend string
	SendFailed  string
	MissingCode string
	NotFound    string
	Expired     string
	Mismatch    string
	Verified    string
}

// FlowConfig parameterizes a CodeFlow.
type FlowConfig struct {
	Name            string
	Recipient       Recipient
	AdminEmail      string // used with RecipientAdmin
	RequirePassword bool
	Provision       bool // create account + profile when a code verifies
	Subject         string
	Body            func(email, code string, ttl time.Duration) string
	Messages        FlowMessages
}

// OTPFlow mails a numeric one-time password to the requester.
func OTPFlow() FlowConfig {
	return FlowConfig{
		Name:      "otp",
		Recipient: RecipientRequester,
		Subject:   "Your OTP Code",
		Body: func(_, code string, ttl time.Duration) string {
			return fmt.Sprintf("Your OTP is %s. It is valid for %d minutes.", code, int(ttl.Minutes()))
		},
		Messages: FlowMessages{
			Sent:        "OTP sent successfully.",
			MissingSend: "Email is required.",
			SendFailed:  "Failed to send OTP.",
			MissingCode: "Missing email or OTP.",
			NotFound:    "No OTP found for this email.",
			Expired:     "OTP expired. Please request a new one.",
			Mismatch:    "Invalid OTP.",
			Verified:    "OTP verified successfully.",
		},
	}
}

// SignupApprovalFlow mails an authorization code to adminEmail; the admin
// passes it to the applicant, whose account is provisioned on verification.
func SignupApprovalFlow(adminEmail string, provision bool) FlowConfig {
	return FlowConfig{
		Name:            "signup",
		Recipient:       RecipientAdmin,
		AdminEmail:      adminEmail,
		RequirePassword: true,
		Provision:       provision,
		Subject:         "New User Authorization Code",
		Body: func(email, code string, _ time.Duration) string {
			return fmt.Sprintf("Authorization code for user %s: %s", email, code)
		},
		Messages: FlowMessages{
			Sent:        "Authorization code sent to admin.",
			MissingSend: "Email and password are required.",
			SendFailed:  "Internal Server Error",
			MissingCode: "Email and code are required.",
			NotFound:    "No authorization code found for this email.",
			Expired:     "Authorization code has expired. Please request a new one.",
			Mismatch:    "Invalid authorization code.",
			Verified:    "Authorization code verified.",
		},
	}
}

// IssueRequest is the input of Issue. Password and names are only used by
// flows that require them.
type IssueRequest struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// RegisterRequest is the input of Register.
type RegisterRequest struct {
	Email       string
	Password    string
	DisplayName string
	Code        string
}

const minPasswordLen = 6

// CodeFlow issues codes into its own Store and redeems them.
type CodeFlow struct {
	cfg      FlowConfig
	store    *codestore.Store
	mail     mailer.Sender
	accounts *AccountService
	log      logging.Logger
}

// NewCodeFlow builds a flow. accounts may be nil when the flow neither
// provisions nor registers.
func NewCodeFlow(cfg FlowConfig, store *codestore.Store, mail mailer.Sender, accounts *AccountService, log logging.Logger) *CodeFlow {
	return &CodeFlow{cfg: cfg, store: store, mail: mail, accounts: accounts, log: log.With("flow", cfg.Name)}
}

func (f *CodeFlow) Messages() FlowMessages { return f.cfg.Messages }

// Issue validates req, stores a fresh code and mails it. A failed dispatch
// leaves the code in the store.
func (f *CodeFlow) Issue(ctx context.Context, req IssueRequest) error {
	email := codestore.NormalizeEmail(req.Email)
	password := strings.TrimSpace(req.Password)
	if email == "" || (f.cfg.RequirePassword && password == "") {
		return invalid(f.cfg.Messages.MissingSend)
	}

	payload := map[string]string{}
	if f.cfg.RequirePassword {
		payload[payloadPassword] = req.Password
	}
	if v := strings.TrimSpace(req.FirstName); v != "" {
		payload[payloadFirstName] = v
	}
	if v := strings.TrimSpace(req.LastName); v != "" {
		payload[payloadLastName] = v
	}

	code, err := f.store.Issue(email, payload)
	if err != nil {
		return fmt.Errorf("generate code: %w", err)
	}

	to := email
	if f.cfg.Recipient == RecipientAdmin {
		to = f.cfg.AdminEmail
	}
	if err := f.mail.Send(ctx, to, f.cfg.Subject, f.cfg.Body(email, code, f.store.TTL())); err != nil {
		return fmt.Errorf("%w: %w", ErrDispatchFailed, err)
	}
	f.log.Info(ctx, "code dispatched", "email", email, "recipient", to)
	return nil
}

// Verify redeems a code. When the flow provisions accounts, a provisioning
// failure is logged and does not fail the verification: the code is
// already spent and it was correct.
func (f *CodeFlow) Verify(ctx context.Context, email, code string) error {
	email = codestore.NormalizeEmail(email)
	if email == "" || strings.TrimSpace(code) == "" {
		return invalid(f.cfg.Messages.MissingCode)
	}
	payload, err := f.store.Verify(email, code)
	if err != nil {
		return err
	}
	if !f.cfg.Provision || f.accounts == nil {
		return nil
	}
	u := NewUser{
		Email:     email,
		Password:  payload[payloadPassword],
		FirstName: payload[payloadFirstName],
		LastName:  payload[payloadLastName],
	}
	if a, err := f.accounts.Provision(ctx, u); err != nil {
		f.log.Error(ctx, "provision after verification failed", "email", email, "err", err)
	} else {
		f.log.Info(ctx, "account provisioned", "email", email, "uid", a.UID)
	}
	return nil
}

// Register redeems a code and creates the account in one call. Any code
// failure is terminal: nothing is created.
func (f *CodeFlow) Register(ctx context.Context, req RegisterRequest) (identity.Account, error) {
	email := codestore.NormalizeEmail(req.Email)
	if email == "" || req.Password == "" || strings.TrimSpace(req.Code) == "" {
		return identity.Account{}, invalid("email, password and code are required")
	}
	if len(req.Password) < minPasswordLen {
		return identity.Account{}, invalid(fmt.Sprintf("password must be at least %d characters", minPasswordLen))
	}
	if _, err := f.store.Verify(email, req.Code); err != nil {
		return identity.Account{}, err
	}
	return f.accounts.Register(ctx, NewUser{Email: email, Password: req.Password, DisplayName: req.DisplayName})
}
