// Package matcher connects new listings and wanted ads with the users
// whose brand preferences they satisfy, and notifies those users.
package matcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/evcraddock/mela/internal/apperr"
	"github.com/evcraddock/mela/internal/brand"
	"github.com/evcraddock/mela/internal/classifier"
	"github.com/evcraddock/mela/internal/listing"
	"github.com/evcraddock/mela/internal/metrics"
	"github.com/evcraddock/mela/internal/notification"
	"github.com/evcraddock/mela/internal/push"
	"github.com/evcraddock/mela/internal/validate"
	"github.com/evcraddock/mela/internal/wanted"
)

// Source is the kind of record a match starts from.
type Source string

const (
	SourceListing Source = "listing"
	SourceWanted  Source = "wanted"
)

// NoBrandMessage is reported when the detector finds no brand.
const NoBrandMessage = "No recognizable brand found"

// ErrNotFound is returned when the source record does not exist.
var ErrNotFound = apperr.NotFound("Item not found")

// Request names the record to match.
type Request struct {
	Type       Source `json:"type" validate:"required,oneof=listing wanted"`
	ItemID     string `json:"itemId" validate:"required_if=Type listing"`
	WantedAdID string `json:"wantedAdId" validate:"required_if=Type wanted"`
}

func (r Request) id() string {
	if r.Type == SourceWanted {
		return r.WantedAdID
	}
	return r.ItemID
}

// Result reports the outcome of a match.
type Result struct {
	Success           bool
	Brand             string
	MatchedUsersCount int
	// Message is set instead of the other fields when no brand was found.
	Message string
}

// MarshalJSON renders {"message": ...} for brandless results and
// {"success", "brand", "matchedUsersCount"} otherwise.
func (r Result) MarshalJSON() ([]byte, error) {
	if r.Message != "" {
		return json.Marshal(struct {
			Message string `json:"message"`
		}{r.Message})
	}
	return json.Marshal(struct {
		Success           bool   `json:"success"`
		Brand             string `json:"brand"`
		MatchedUsersCount int    `json:"matchedUsersCount"`
	}{r.Success, r.Brand, r.MatchedUsersCount})
}

// Listings loads listings.
type Listings interface {
	GetByID(ctx context.Context, id string) (*listing.Listing, error)
}

// WantedAds loads wanted ads.
type WantedAds interface {
	GetByID(ctx context.Context, id string) (*wanted.Ad, error)
}

// Preferences finds users by brand.
type Preferences interface {
	UsersWanting(ctx context.Context, brand, exclude string) ([]string, error)
	UsersOwning(ctx context.Context, brand, exclude string) ([]string, error)
}

// Notifications stores notifications atomically.
type Notifications interface {
	InsertBatch(ctx context.Context, batch []*notification.Notification) error
}

// Pusher delivers a push message to a user's devices.
type Pusher interface {
	Notify(ctx context.Context, userID string, msg push.Message) (int, error)
}

// Deps are the collaborators of a Matcher. Pusher and Metrics are optional.
type Deps struct {
	Listings      Listings
	WantedAds     WantedAds
	Preferences   Preferences
	Notifications Notifications
	Detector      classifier.Detector
	Pusher        Pusher
	Metrics       *metrics.Metrics
	Log           *zap.Logger
	// PushWorkers bounds concurrent push deliveries per match.
	PushWorkers int
}

// Matcher runs brand matches.
type Matcher struct {
	d Deps
}

// New creates a matcher.
func New(d Deps) *Matcher {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	d.Log = d.Log.Named("matcher")
	if d.PushWorkers <= 0 {
		d.PushWorkers = 8
	}
	return &Matcher{d: d}
}

// source is what a match needs from a listing or wanted ad.
type source struct {
	ownerID     string
	title       string
	description string
}

// Match detects the brand of the requested record, notifies every other
// user whose preferences match it, and pushes to their devices.
func (m *Matcher) Match(ctx context.Context, req Request) (*Result, error) {
	res, err := m.match(ctx, req)

	outcome := "matched"
	switch {
	case err != nil:
		outcome = "error"
	case res.Message != "":
		outcome = "no_brand"
	case res.MatchedUsersCount == 0:
		outcome = "no_users"
	}
	notified := 0
	if res != nil {
		notified = res.MatchedUsersCount
	}
	label := string(req.Type)
	if req.Type != SourceListing && req.Type != SourceWanted {
		label = "invalid"
	}
	m.d.Metrics.ObserveMatch(label, outcome, notified)

	return res, err
}

func (m *Matcher) match(ctx context.Context, req Request) (*Result, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}

	src, err := m.load(ctx, req)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	name, err := m.d.Detector.DetectBrand(ctx, classifier.Content{Title: src.title, Description: src.description})
	m.d.Metrics.ObserveDetection(time.Since(start), err)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.ErrUnavailable, "brand detection failed")
	}

	log := m.d.Log.With(zap.String("type", string(req.Type)), zap.String("id", req.id()), zap.String("brand", name))
	if name == brand.Unknown {
		log.Debug("no brand detected")
		return &Result{Message: NoBrandMessage}, nil
	}

	var users []string
	if req.Type == SourceListing {
		users, err = m.d.Preferences.UsersWanting(ctx, name, src.ownerID)
	} else {
		users, err = m.d.Preferences.UsersOwning(ctx, name, src.ownerID)
	}
	if err != nil {
		return nil, fmt.Errorf("finding matched users: %w", err)
	}

	batch := make([]*notification.Notification, 0, len(users))
	for _, u := range users {
		batch = append(batch, build(req, u, name, src.title))
	}
	if len(batch) > 0 {
		if err := m.d.Notifications.InsertBatch(ctx, batch); err != nil {
			return nil, fmt.Errorf("creating notifications: %w", err)
		}
		m.pushAll(ctx, batch)
	}

	log.Info("match complete", zap.Int("matched", len(users)))
	return &Result{Success: true, Brand: name, MatchedUsersCount: len(users)}, nil
}

func (m *Matcher) load(ctx context.Context, req Request) (*source, error) {
	switch req.Type {
	case SourceListing:
		l, err := m.d.Listings.GetByID(ctx, req.ItemID)
		if err != nil {
			return nil, notFound(err)
		}
		return &source{ownerID: l.UserID, title: l.Title, description: l.Description}, nil
	default:
		a, err := m.d.WantedAds.GetByID(ctx, req.WantedAdID)
		if err != nil {
			return nil, notFound(err)
		}
		return &source{ownerID: a.UserID, title: a.Title, description: a.Description}, nil
	}
}

func notFound(err error) error {
	if errors.Is(err, apperr.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

func build(req Request, userID, brandName, title string) *notification.Notification {
	n := &notification.Notification{UserID: userID}
	if req.Type == SourceListing {
		id := req.ItemID
		n.Type = notification.TypeMatchWishlist
		n.Title = fmt.Sprintf("%s item available!", brandName)
		n.Body = fmt.Sprintf("A %s item you're looking for has been posted: %s", brandName, title)
		n.RelatedItemID = &id
	} else {
		id := req.WantedAdID
		n.Type = notification.TypeMatchOwned
		n.Title = fmt.Sprintf("Someone wants %s!", brandName)
		n.Body = fmt.Sprintf("Someone is looking for: %s. You might have this!", title)
		n.RelatedWantedAdID = &id
	}
	return n
}

// pushAll delivers the stored notifications to devices. Failures are
// logged and counted only.
func (m *Matcher) pushAll(ctx context.Context, batch []*notification.Notification) {
	if m.d.Pusher == nil {
		return
	}

	var g errgroup.Group
	g.SetLimit(m.d.PushWorkers)
	for _, n := range batch {
		g.Go(func() error {
			data := map[string]string{"type": string(n.Type), "notification_id": n.ID}
			if n.RelatedItemID != nil {
				data["item_id"] = *n.RelatedItemID
			}
			if n.RelatedWantedAdID != nil {
				data["wanted_ad_id"] = *n.RelatedWantedAdID
			}

			sent, err := m.d.Pusher.Notify(ctx, n.UserID, push.Message{Title: n.Title, Body: n.Body, Data: data})
			m.d.Metrics.ObservePush(sent, err)
			if err != nil {
				m.d.Log.Warn("push failed", zap.String("user_id", n.UserID), zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()
}
