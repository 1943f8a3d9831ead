package notify

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/google/uuid"
	"github.com/knockouthq/knockout/go/internal/apperrors"
	"github.com/knockouthq/knockout/go/internal/models"
	"github.com/knockouthq/knockout/go/internal/router"
	"github.com/rs/zerolog/log"
)

// Notification is a tapped push notification as delivered by the OS layer.
type Notification struct {
	Identifier string
	TargetURL  string
}

// SessionProvider exposes the authenticated user, if any.
type SessionProvider interface {
	CurrentUserID() (uuid.UUID, bool)
}

// ParticipantReader looks up the tapping user's participant row.
type ParticipantReader interface {
	GetParticipant(ctx context.Context, contestID, userID uuid.UUID) (*models.Participant, error)
}

// Observer turns tapped notifications into navigation, gated by current
// eligibility. Result-screen targets reached ahead of the data register a
// pending result intent so the guard holds instead of bouncing.
type Observer struct {
	nav          router.Navigator
	intents      *router.IntentStore
	session      SessionProvider
	participants ParticipantReader

	mu   sync.Mutex
	seen map[string]struct{}
}

func NewObserver(nav router.Navigator, intents *router.IntentStore, session SessionProvider, participants ParticipantReader) *Observer {
	return &Observer{
		nav:          nav,
		intents:      intents,
		session:      session,
		participants: participants,
		seen:         make(map[string]struct{}),
	}
}

// HandleTap resolves one tapped notification. Duplicate identifiers are
// dropped so a re-delivered tap never navigates twice.
func (o *Observer) HandleTap(ctx context.Context, note Notification) error {
	o.mu.Lock()
	if _, dup := o.seen[note.Identifier]; dup {
		o.mu.Unlock()
		log.Debug().Str("identifier", note.Identifier).Msg("duplicate notification tap ignored")
		return nil
	}
	o.seen[note.Identifier] = struct{}{}
	o.mu.Unlock()

	path, err := targetPath(note.TargetURL)
	if err != nil {
		return fmt.Errorf("failed to decode notification target: %w", err)
	}

	userID, authenticated := o.session.CurrentUserID()
	if !authenticated {
		o.nav.Navigate(router.PathLogin, router.NavReplace)
		return apperrors.Auth("notification tapped without a signed in user")
	}

	_, contestID, isContestRoute := router.ParsePath(path)
	if !isContestRoute {
		// Target outside the contest scheme; follow it literally.
		o.nav.Navigate(path, router.NavPush)
		return nil
	}

	participant, err := o.participants.GetParticipant(ctx, contestID, userID)
	if err != nil {
		return fmt.Errorf("failed to check contest eligibility: %w", err)
	}
	if participant == nil {
		// Not in this contest (anymore); land on the contest list.
		o.nav.Navigate(router.PathContests, router.NavReplace)
		return nil
	}

	if participant.Eliminated() {
		// An eliminated user is never routed into answering or result screens
		// for rounds after their elimination, whatever the notification says.
		eliminatedPath, _ := router.PathFor(models.PlayerStateEliminated, contestID)
		o.nav.Navigate(eliminatedPath, router.NavReplace)
		return nil
	}

	if router.ResultPath(path) && o.nav.CurrentPath() != path {
		// The result the notification announces may not have landed in our
		// synced state yet; the intent tells the guard to hold there.
		o.intents.Set(contestID, path)
	}

	o.nav.Navigate(path, router.NavPush)
	return nil
}

// targetPath extracts the route from a notification's target URL, which may
// arrive as a bare path, a deep link, or a full https URL.
func targetPath(target string) (string, error) {
	if target == "" {
		return "", fmt.Errorf("empty target url")
	}
	u, err := url.Parse(target)
	if err != nil {
		return "", err
	}
	path := u.Path
	if path == "" && u.Opaque != "" {
		path = "/" + u.Opaque
	}
	if path == "" {
		return "", fmt.Errorf("target url %q has no path", target)
	}
	return path, nil
}
