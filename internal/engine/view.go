package engine

import (
	"fmt"
	"sync"
)

// Screen is the visible surface of the messaging feature. The view
// controller is purely presentational; it defines the handoffs between
// the directory and the synchronizer but holds no conversation state of
// its own.
type Screen string

const (
	ScreenList         Screen = "list"
	ScreenConversation Screen = "conversation"
	ScreenCompose      Screen = "compose"
	ScreenInfo         Screen = "info"
	ScreenSearch       Screen = "search"
	ScreenMedia        Screen = "media"
)

var screenTransitions = map[Screen][]Screen{
	ScreenList:         {ScreenConversation, ScreenCompose, ScreenSearch},
	ScreenConversation: {ScreenList, ScreenInfo, ScreenMedia, ScreenConversation},
	ScreenCompose:      {ScreenList, ScreenConversation},
	ScreenInfo:         {ScreenConversation, ScreenList},
	ScreenSearch:       {ScreenList, ScreenConversation},
	ScreenMedia:        {ScreenConversation},
}

type ViewController struct {
	mu sync.Mutex
	// current screen; starts at the conversation list
	screen Screen
	// conversationId is set while a conversation-scoped screen
	// (conversation, info, media) is visible
	conversationId string
}

func NewViewController() *ViewController {
	return &ViewController{screen: ScreenList}
}

func (v *ViewController) Screen() (Screen, string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.screen, v.conversationId
}

// Transition moves to the target screen; conversationId is required for
// conversation-scoped screens and ignored otherwise.
func (v *ViewController) Transition(target Screen, conversationId string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	allowed := false
	for _, next := range screenTransitions[v.screen] {
		if next == target {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("cannot transition from %q to %q", v.screen, target)
	}

	switch target {
	case ScreenConversation, ScreenInfo, ScreenMedia:
		if conversationId == "" {
			return fmt.Errorf("screen %q requires a conversation", target)
		}
		v.conversationId = conversationId
	default:
		v.conversationId = ""
	}

	v.screen = target
	return nil
}
