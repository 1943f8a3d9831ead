package main

import (
	"fmt"
	"sort"
	"sync"

	"github.com/knockouthq/knockout/go/internal/models"
	"github.com/knockouthq/knockout/go/internal/router"
	"github.com/knockouthq/knockout/go/internal/session"
)

// terminalNavigator renders screens to stdout. It is the client's single
// navigation surface; the guard and the notification observer both drive it.
type terminalNavigator struct {
	mu      sync.Mutex
	current string
	onMove  func(path string)
}

func newTerminalNavigator(initial string, onMove func(path string)) *terminalNavigator {
	return &terminalNavigator{current: initial, onMove: onMove}
}

func (n *terminalNavigator) Navigate(path string, mode router.NavMode) {
	n.mu.Lock()
	n.current = path
	onMove := n.onMove
	n.mu.Unlock()

	verb := "->"
	if mode == router.NavReplace {
		verb = "=>"
	}
	fmt.Printf("\n%s %s\n", verb, path)

	if onMove != nil {
		onMove(path)
	}
}

func (n *terminalNavigator) CurrentPath() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}

// render prints the screen for the current path from the latest snapshot.
func render(path string, snap session.Snapshot) {
	state, _, ok := router.ParsePath(path)
	if !ok {
		fmt.Printf("[%s]\n", path)
		return
	}

	switch state {
	case models.PlayerStateLobby:
		name := "contest"
		if snap.Contest != nil {
			name = snap.Contest.Name
		}
		fmt.Printf("[lobby] %s, waiting for the first round\n", name)
	case models.PlayerStateAnswering:
		if snap.Question == nil {
			fmt.Println("[game] waiting for the question")
			return
		}
		fmt.Printf("[game] round %d: %s\n", snap.Question.Round, snap.Question.Question)
		keys := make([]string, 0, len(snap.Question.Options))
		for k := range snap.Question.Options {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Printf("  %s) %s\n", k, snap.Question.Options[k])
		}
		fmt.Println("type an option key to answer")
	case models.PlayerStateSubmittedWaiting:
		if snap.Answer != nil {
			fmt.Printf("[submitted] answer %q locked in, waiting for grading\n", snap.Answer.Answer)
		} else {
			fmt.Println("[submitted] waiting for grading")
		}
	case models.PlayerStateCorrectWaitingNext:
		fmt.Println("[correct] you survive, next round soon")
	case models.PlayerStateEliminated:
		fmt.Println("[eliminated] better luck next time")
	case models.PlayerStateWinner:
		fmt.Println("[winner] contest over, you win!")
	}
}
