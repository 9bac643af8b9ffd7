package emergency

import (
	"context"
	"errors"
	"fmt"
	"time"

	emergencyModel "github.com/msfrancis/mediguide/backend/internal/model/emergency"
	"github.com/msfrancis/mediguide/backend/internal/model/hospital"
	"github.com/msfrancis/mediguide/backend/internal/model/profile"
	"github.com/msfrancis/mediguide/backend/pkg/logger"
)

var (
	// ErrLocationUnavailable aborts the entire dispatch: permission
	// denied, no capability, or the fix timed out.
	ErrLocationUnavailable = errors.New("location unavailable")

	ErrHospitalNotFound = errors.New("selected hospital not found")
)

// Locator produces a one-shot, high-accuracy location fix. No cached fix is
// acceptable for an explicit trigger.
type Locator interface {
	Current(ctx context.Context) (emergencyModel.Location, error)
}

// Notifier surfaces user-visible status notices for dispatch outcomes.
type Notifier interface {
	Notify(title, detail string)
}

// Config carries the fixed policy knobs of the dispatcher.
type Config struct {
	// DefaultNumber is contacted when the user has no trusted hospitals.
	DefaultNumber string
	// CountryCode is prepended to numbers missing it.
	CountryCode string
	// Scheme and WebHost shape the messaging deep-link and its fallback.
	Scheme  string
	WebHost string
	// WebFallbackDelay is how long the app link gets before the web link
	// takes over.
	WebFallbackDelay time.Duration
	// LocationTimeout bounds the geolocation fetch.
	LocationTimeout time.Duration
}

// Options select the target and trigger mode of one dispatch.
type Options struct {
	UserID string
	// HospitalID picks a specific trusted hospital; empty means policy
	// default.
	HospitalID string
	// AutoTriggered marks a watchdog-initiated dispatch: the selector is
	// skipped and the top-priority hospital is contacted directly.
	AutoTriggered bool
}

// Result reports everything one dispatch did, channel by channel.
type Result struct {
	Alert     emergencyModel.Alert `json:"alert"`
	EmailSent bool                 `json:"emailSent"`
	EmailErr  string               `json:"emailError,omitempty"`

	// NeedsSelection is set on a user-triggered dispatch with trusted
	// hospitals and no explicit choice: the caller must present the
	// selector. Email has already been attempted at that point.
	NeedsSelection bool                       `json:"needsSelection"`
	Hospitals      []hospital.TrustedHospital `json:"hospitals,omitempty"`

	TargetName string    `json:"targetName,omitempty"`
	Delivery   *Delivery `json:"delivery,omitempty"`
	Message    string    `json:"message,omitempty"`
}

// Dispatcher composes and delivers emergency alerts over two independent
// channels: the messaging deep-link and the transactional email endpoint.
// Email failure never blocks the messaging attempt; a failed location fetch
// aborts everything.
type Dispatcher struct {
	cfg       Config
	locator   Locator
	mailer    Mailer
	messenger *DeepLinkMessenger
	profiles  profile.Store
	hospitals hospital.Store
	notifier  Notifier
	now       func() time.Time
}

func NewDispatcher(cfg Config, locator Locator, mailer Mailer, messenger *DeepLinkMessenger, profiles profile.Store, hospitals hospital.Store, notifier Notifier) *Dispatcher {
	if messenger == nil {
		messenger = &DeepLinkMessenger{
			Scheme:        cfg.Scheme,
			WebHost:       cfg.WebHost,
			CountryCode:   cfg.CountryCode,
			FallbackDelay: cfg.WebFallbackDelay,
		}
	}
	return &Dispatcher{
		cfg:       cfg,
		locator:   locator,
		mailer:    mailer,
		messenger: messenger,
		profiles:  profiles,
		hospitals: hospitals,
		notifier:  notifier,
		now:       time.Now,
	}
}

// Dispatch runs one emergency event end to end.
func (d *Dispatcher) Dispatch(ctx context.Context, opts Options) (*Result, error) {
	if d.locator == nil {
		// Auto-triggered dispatches run without a client request and may
		// have no location source at all.
		logger.Errorf("[emergency] no location source configured")
		d.notify("Emergency Alert Failed",
			"Could not get location. Please call emergency services directly.")
		return nil, fmt.Errorf("%w: no location source configured", ErrLocationUnavailable)
	}

	locCtx, cancel := context.WithTimeout(ctx, d.cfg.LocationTimeout)
	defer cancel()

	loc, err := d.locator.Current(locCtx)
	if err != nil {
		logger.Errorf("[emergency] location fetch failed: %v", err)
		d.notify("Emergency Alert Failed",
			"Could not get location. Please call emergency services directly.")
		return nil, fmt.Errorf("%w: %v", ErrLocationUnavailable, err)
	}

	userProfile := d.loadProfile(ctx, opts.UserID)
	hospitals := d.loadHospitals(ctx, opts.UserID)

	alert := emergencyModel.Alert{
		Profile:       userProfile,
		Location:      loc,
		AutoTriggered: opts.AutoTriggered,
	}

	result := &Result{Alert: alert}
	d.sendEmail(ctx, alert, result)

	target, err := d.selectTarget(hospitals, opts, result)
	if err != nil {
		return nil, err
	}
	if result.NeedsSelection {
		d.notify(emailNoticeTitle(result.EmailSent),
			selectorDetail(result.EmailSent))
		return result, nil
	}

	phone := d.cfg.CountryCode + d.cfg.DefaultNumber
	targetName := "default emergency contact"
	if target != nil {
		alert.Hospital = target
		result.Alert = alert
		phone = target.Phone
		targetName = target.Name
	}
	result.TargetName = targetName

	text := ComposeMessage(alert)
	delivery := d.messenger.Send(phone, text, d.now())
	result.Delivery = &delivery
	result.Message = text

	d.notifyOutcome(result, targetName)
	return result, nil
}

// selectTarget applies the contact-selection policy over the priority-sorted
// hospital list.
func (d *Dispatcher) selectTarget(hospitals []hospital.TrustedHospital, opts Options, result *Result) (*hospital.TrustedHospital, error) {
	if opts.HospitalID != "" {
		for i := range hospitals {
			if hospitals[i].ID == opts.HospitalID {
				return &hospitals[i], nil
			}
		}
		return nil, ErrHospitalNotFound
	}

	if len(hospitals) == 0 {
		return nil, nil
	}

	if opts.AutoTriggered {
		// Watchdog path: no selector, straight to top priority.
		return &hospitals[0], nil
	}

	result.NeedsSelection = true
	result.Hospitals = hospitals
	return nil, nil
}

func (d *Dispatcher) sendEmail(ctx context.Context, alert emergencyModel.Alert, result *Result) {
	if d.mailer == nil {
		return
	}
	if err := d.mailer.Send(ctx, alert); err != nil {
		logger.Errorf("[emergency] email channel failed: %v", err)
		result.EmailErr = err.Error()
		return
	}
	result.EmailSent = true
}

func (d *Dispatcher) notifyOutcome(result *Result, targetName string) {
	if result.EmailSent {
		d.notify("Emergency Alert Sent",
			fmt.Sprintf("Contacting %s. Email sent.", targetName))
		return
	}
	d.notify("Emergency Alert Partial",
		fmt.Sprintf("Contacting %s. Email may have failed - please ensure someone is notified.", targetName))
}

func (d *Dispatcher) loadProfile(ctx context.Context, userID string) *profile.Profile {
	if d.profiles == nil || userID == "" {
		return nil
	}
	p, err := d.profiles.Get(ctx, userID)
	if err != nil {
		if !errors.Is(err, profile.ErrNotFound) {
			logger.Warnf("[emergency] profile fetch failed: %v", err)
		}
		return nil
	}
	return p
}

func (d *Dispatcher) loadHospitals(ctx context.Context, userID string) []hospital.TrustedHospital {
	if d.hospitals == nil || userID == "" {
		return nil
	}
	list, err := d.hospitals.ListByUser(ctx, userID)
	if err != nil {
		logger.Warnf("[emergency] hospital fetch failed: %v", err)
		return nil
	}
	return list
}

func (d *Dispatcher) notify(title, detail string) {
	if d.notifier != nil {
		d.notifier.Notify(title, detail)
	}
}

func emailNoticeTitle(sent bool) string {
	if sent {
		return "Email Sent"
	}
	return "Email Failed"
}

func selectorDetail(emailSent bool) string {
	if emailSent {
		return "Now select a hospital to contact."
	}
	return "Could not send email. Select a hospital to contact directly."
}
