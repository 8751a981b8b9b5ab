package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Platform — социальная платформа, на которую публикуется пост.
type Platform string

const (
	PlatformTwitter   Platform = "TWITTER"
	PlatformInstagram Platform = "INSTAGRAM"
	PlatformTikTok    Platform = "TIKTOK"
	PlatformFacebook  Platform = "FACEBOOK"
	PlatformLinkedIn  Platform = "LINKEDIN"
)

// Platforms — все поддерживаемые платформы.
var Platforms = []Platform{
	PlatformTwitter,
	PlatformInstagram,
	PlatformTikTok,
	PlatformFacebook,
	PlatformLinkedIn,
}

// String возвращает строковое представление Platform.
func (p Platform) String() string {
	return string(p)
}

// IsValid проверяет, что платформа поддерживается.
func (p Platform) IsValid() bool {
	for _, known := range Platforms {
		if p == known {
			return true
		}
	}
	return false
}

// ParsePlatform парсит имя платформы без учёта регистра.
func ParsePlatform(s string) (Platform, error) {
	p := Platform(strings.ToUpper(strings.TrimSpace(s)))
	if !p.IsValid() {
		return "", fmt.Errorf("unknown platform %q", s)
	}
	return p, nil
}

// Post — единица контента для одной платформы.
//
// Пост обычно создаётся генератором контента через Catalog.
type Post struct {
	ID         uuid.UUID `json:"id"`
	CampaignID uuid.UUID `json:"campaign_id"`

	// Platform фиксируется при создании.
	Platform Platform `json:"platform"`

	Title string `json:"title"`

	// ContentRef — ссылка на контент (например, URL в объектном хранилище).
	ContentRef string `json:"content_ref"`

	CreatedAt time.Time `json:"created_at"`
}
