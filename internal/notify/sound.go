package notify

import (
	"strings"

	"github.com/arhteh596/granovskicrm-sub002/internal/domain"
)

const (
	SoundCallback = "/assets/sounds/callback.mp3"
	SoundTransfer = "/assets/sounds/transfer.mp3"
	SoundDefault  = "/assets/sounds/notify.mp3"

	soundVolume = 0.6
)

type soundRule struct {
	keywords []string
	src      string
}

// Order matters: the first rule with a matching keyword wins.
var soundRules = []soundRule{
	{keywords: []string{"перезвон", "callback"}, src: SoundCallback},
	{keywords: []string{"передан", "transfer"}, src: SoundTransfer},
}

// SelectSound picks exactly one sound for a notification title.
func SelectSound(title string) domain.Sound {
	t := strings.ToLower(title)
	for _, r := range soundRules {
		for _, kw := range r.keywords {
			if strings.Contains(t, kw) {
				return domain.Sound{Src: r.src, Volume: soundVolume}
			}
		}
	}
	return domain.Sound{Src: SoundDefault, Volume: soundVolume}
}
