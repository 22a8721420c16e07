package state

import (
	"clapbattle/internal/domain"
)

// Snapshot is an immutable view of the battle. Seq increases with every
// published snapshot; a viewer holding a higher Seq discards older ones.
type Snapshot struct {
	Seq           uint64               `json:"seq"`
	Phase         domain.Phase         `json:"phase"`
	BattleID      string               `json:"battleId"`
	Config        *domain.BattleConfig `json:"config,omitempty"`
	VerseA        *domain.Verse        `json:"verseA"`
	VerseB        *domain.Verse        `json:"verseB"`
	ClapA         *domain.ClapScore    `json:"clapA"`
	ClapB         *domain.ClapScore    `json:"clapB"`
	Winner        string               `json:"winner,omitempty"`
	Highlight     domain.Label         `json:"highlight"`
	AnnouncerLine string               `json:"announcerLine"`
	Error         string               `json:"error,omitempty"`
	Speaking      domain.Label         `json:"speaking,omitempty"`
	Soundcheck    bool                 `json:"soundcheck"`
}

// Snapshot returns the current view.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// Phase returns the active phase.
func (m *Manager) Phase() domain.Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

func (m *Manager) snapshotLocked() Snapshot {
	snap := Snapshot{
		Seq:           m.version,
		Phase:         m.phase,
		BattleID:      m.battleID,
		Config:        clone(m.config),
		VerseA:        clone(m.verseA),
		VerseB:        clone(m.verseB),
		ClapA:         clone(m.clapA),
		ClapB:         clone(m.clapB),
		AnnouncerLine: m.announcer,
		Error:         m.errMsg,
		Speaking:      m.speaking,
		Soundcheck:    m.soundcheckCancel != nil,
	}

	if m.phase == domain.PhaseResult && m.clapA != nil && m.clapB != nil {
		snap.Winner = domain.Winner(m.clapA.Score, m.clapB.Score)
		if snap.Winner != domain.Tie {
			snap.Highlight = domain.Label(snap.Winner)
		}
	}
	return snap
}

func clone[T any](v *T) *T {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
