package media

import (
	"context"
	"errors"
	"fmt"
	"time"

	"call-platform/internal/config"

	"github.com/livekit/protocol/auth"
	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go"
	"github.com/twitchtv/twirp"
	"golang.org/x/sync/singleflight"
)

// roomService is the subset of lksdk.RoomServiceClient used here.
type roomService interface {
	CreateRoom(ctx context.Context, req *livekit.CreateRoomRequest) (*livekit.Room, error)
	DeleteRoom(ctx context.Context, req *livekit.DeleteRoomRequest) (*livekit.DeleteRoomResponse, error)
}

// LiveKitProvider backs media sessions with LiveKit rooms.
// The room name is derived from the call session id, so CreateRoom is
// naturally idempotent and the room name doubles as the media session id.
type LiveKitProvider struct {
	rooms     roomService
	apiKey    string
	apiSecret string
	url       string
	prefix    string
	tokenTTL  time.Duration
	emptyTTL  time.Duration

	creates singleflight.Group
}

func NewLiveKitProvider(cfg config.LiveKitConfig) (*LiveKitProvider, error) {
	if cfg.URL == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, errors.New("media: livekit url, api key and api secret are required")
	}
	client := lksdk.NewRoomServiceClient(cfg.URL, cfg.APIKey, cfg.APISecret)
	return newLiveKitProvider(client, cfg), nil
}

func newLiveKitProvider(rooms roomService, cfg config.LiveKitConfig) *LiveKitProvider {
	p := &LiveKitProvider{
		rooms:     rooms,
		apiKey:    cfg.APIKey,
		apiSecret: cfg.APISecret,
		url:       cfg.URL,
		prefix:    cfg.RoomPrefix,
		tokenTTL:  cfg.TokenTTL,
		emptyTTL:  cfg.EmptyTimeout,
	}
	if p.tokenTTL <= 0 {
		p.tokenTTL = 2 * time.Hour
	}
	if p.emptyTTL <= 0 {
		p.emptyTTL = 5 * time.Minute
	}
	return p
}

// RoomName is the media session id for a call session.
func (p *LiveKitProvider) RoomName(sessionID string) string {
	return p.prefix + sessionID
}

func (p *LiveKitProvider) CreateSession(ctx context.Context, sessionID string) (string, error) {
	if sessionID == "" {
		return "", ErrInvalidArgument
	}
	name := p.RoomName(sessionID)
	v, err, _ := p.creates.Do(name, func() (any, error) {
		room, err := p.rooms.CreateRoom(ctx, &livekit.CreateRoomRequest{
			Name:         name,
			EmptyTimeout: uint32(p.emptyTTL / time.Second),
		})
		if err != nil {
			return "", fmt.Errorf("media: create room %s: %w", name, err)
		}
		if room.GetName() != "" {
			return room.GetName(), nil
		}
		return name, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (p *LiveKitProvider) DestroySession(ctx context.Context, mediaSessionID string) error {
	if mediaSessionID == "" {
		return nil
	}
	_, err := p.rooms.DeleteRoom(ctx, &livekit.DeleteRoomRequest{Room: mediaSessionID})
	if err == nil || isNotFound(err) {
		return nil
	}
	return fmt.Errorf("media: delete room %s: %w", mediaSessionID, err)
}

func (p *LiveKitProvider) IssueJoinCredential(ctx context.Context, mediaSessionID, userID string) (Credential, error) {
	if mediaSessionID == "" || userID == "" {
		return Credential{}, ErrInvalidArgument
	}
	canPublish := true
	canSubscribe := true

	at := auth.NewAccessToken(p.apiKey, p.apiSecret)
	at.SetVideoGrant(&auth.VideoGrant{
		RoomJoin:     true,
		Room:         mediaSessionID,
		CanPublish:   &canPublish,
		CanSubscribe: &canSubscribe,
	}).
		SetIdentity(userID).
		SetValidFor(p.tokenTTL)

	token, err := at.ToJWT()
	if err != nil {
		return Credential{}, fmt.Errorf("media: sign join token: %w", err)
	}
	return Credential{AttendeeID: userID, Token: token, URL: p.url}, nil
}

func isNotFound(err error) bool {
	var terr twirp.Error
	if errors.As(err, &terr) {
		return terr.Code() == twirp.NotFound
	}
	return false
}
