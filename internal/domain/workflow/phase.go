// phase.go — конечный автомат фаз workflow.
//
//	idle → ready → submitting → completed | failed
//
// completed и failed возвращаются в ready (или idle, если входные данные
// перестали удовлетворять предусловиям) при следующем изменении входных
// данных; повторная отправка возможна прямо из completed/failed.
package workflow

import (
	"fmt"
	"time"
)

// Phase — фаза workflow.
type Phase string

const (
	// PhaseIdle — предусловия отправки не выполнены
	PhaseIdle Phase = "idle"
	// PhaseReady — все предусловия выполнены
	PhaseReady Phase = "ready"
	// PhaseSubmitting — запрос генерации выполняется
	PhaseSubmitting Phase = "submitting"
	// PhaseCompleted — последний запрос завершился успешно
	PhaseCompleted Phase = "completed"
	// PhaseFailed — последний запрос завершился ошибкой
	PhaseFailed Phase = "failed"
)

// maxHistory — сколько последних переходов хранится в состоянии.
const maxHistory = 50

// validTransitions — матрица допустимых переходов между фазами.
var validTransitions = map[Phase]map[Phase]bool{
	PhaseIdle:       {PhaseReady: true},
	PhaseReady:      {PhaseIdle: true, PhaseSubmitting: true},
	PhaseSubmitting: {PhaseCompleted: true, PhaseFailed: true},
	PhaseCompleted:  {PhaseReady: true, PhaseIdle: true, PhaseSubmitting: true},
	PhaseFailed:     {PhaseReady: true, PhaseIdle: true, PhaseSubmitting: true},
}

// TransitionRecord — запись о переходе между фазами.
type TransitionRecord struct {
	From      Phase     `json:"from"`
	To        Phase     `json:"to"`
	Timestamp time.Time `json:"timestamp"`
}

// TransitionError — недопустимый переход между фазами.
type TransitionError struct {
	From Phase
	To   Phase
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("INVALID_TRANSITION: переход %s → %s недопустим", e.From, e.To)
}

// CanTransition проверяет допустимость перехода from → to.
func CanTransition(from, to Phase) bool {
	return validTransitions[from][to]
}

// transition переводит состояние в фазу target и записывает переход в историю.
// Переход в текущую фазу ничего не делает.
func (s *State) transition(target Phase) error {
	if s.Phase == target {
		return nil
	}
	if !CanTransition(s.Phase, target) {
		return &TransitionError{From: s.Phase, To: target}
	}
	s.PhaseHistory = append(s.PhaseHistory, TransitionRecord{
		From:      s.Phase,
		To:        target,
		Timestamp: time.Now().UTC(),
	})
	if len(s.PhaseHistory) > maxHistory {
		s.PhaseHistory = s.PhaseHistory[len(s.PhaseHistory)-maxHistory:]
	}
	s.Phase = target
	return nil
}

// refreshPhase пересчитывает idle/ready после изменения входных данных.
// Во время отправки фаза не меняется.
func (s *State) refreshPhase() {
	if s.Phase == PhaseSubmitting {
		return
	}
	target := PhaseIdle
	if s.checkPreconditions() == nil {
		target = PhaseReady
	}
	// Переходы idle/ready из любой фазы, кроме submitting, допустимы.
	_ = s.transition(target)
}
