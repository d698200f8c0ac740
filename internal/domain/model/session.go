package model

// ProjectWithInstances is a project together with (a subset of) its judging
// instances, typically restricted to the prizes of one judge.
type ProjectWithInstances struct {
	Project
	Instances []JudgingInstance
}

// Instance returns the judging instance for prizeID, if present.
func (p ProjectWithInstances) Instance(prizeID string) (JudgingInstance, bool) {
	for _, ji := range p.Instances {
		if ji.PrizeID == prizeID {
			return ji, true
		}
	}
	return JudgingInstance{}, false
}

// AssignmentState is the judge-prize state derived from the leader pointer.
type AssignmentState string

// Assignment states.
const (
	StateNoLeader  AssignmentState = "no_leader"
	StateHasLeader AssignmentState = "has_leader"
)

// AssignmentDetail is a prize assignment with its prize and leading project.
type AssignmentDetail struct {
	JudgePrizeAssignment
	Prize  Prize
	Leader *ProjectWithInstances
}

// State returns the state of the assignment.
func (a AssignmentDetail) State() AssignmentState {
	if a.HasLeader() {
		return StateHasLeader
	}
	return StateNoLeader
}

// JudgeSession is a consistent read of everything the engine needs about one
// judge: reliability, prize assignments, ignore list and current project.
type JudgeSession struct {
	Judge       Judge
	Assignments []AssignmentDetail
	IgnoredIDs  []string
	Next        *ProjectWithInstances
}

// PrizeIDs returns the prizes the judge is responsible for.
func (s JudgeSession) PrizeIDs() []string {
	ids := make([]string, 0, len(s.Assignments))
	for _, a := range s.Assignments {
		ids = append(ids, a.PrizeID)
	}
	return ids
}

// Mode tells the client how to present the current project.
type Mode string

// Session modes.
const (
	// ModeFirstEncounter shows the project alone; no prize has a leader to
	// compare against.
	ModeFirstEncounter Mode = "first_encounter"
	// ModeComparison shows the project next to the leader of each comparable prize.
	ModeComparison Mode = "comparison"
)

// PrizeView describes one prize assignment relative to the current project.
type PrizeView struct {
	Prize      Prize           `json:"prize"`
	State      AssignmentState `json:"state"`
	Leader     *Project        `json:"leader,omitempty"`
	Comparable bool            `json:"comparable"`
}

// SessionView is what a judge sees for the project they are currently judging.
type SessionView struct {
	JudgeID string               `json:"judge_id"`
	Project ProjectWithInstances `json:"project"`
	Mode    Mode                 `json:"mode"`
	Prizes  []PrizeView          `json:"prizes"`
}

// NewSessionView derives the presentation of the session's current project.
// It returns nil when the session has no current project.
func NewSessionView(s JudgeSession) *SessionView {
	if s.Next == nil {
		return nil
	}
	view := &SessionView{
		JudgeID: s.Judge.ID,
		Project: *s.Next,
		Mode:    ModeFirstEncounter,
		Prizes:  make([]PrizeView, 0, len(s.Assignments)),
	}
	for _, a := range s.Assignments {
		pv := PrizeView{Prize: a.Prize, State: a.State()}
		if a.Leader != nil {
			leader := a.Leader.Project
			pv.Leader = &leader
			_, leaderEntered := a.Leader.Instance(a.PrizeID)
			_, currentEntered := s.Next.Instance(a.PrizeID)
			pv.Comparable = leaderEntered && currentEntered && a.Leader.ID != s.Next.ID
		}
		if pv.Comparable {
			view.Mode = ModeComparison
		}
		view.Prizes = append(view.Prizes, pv)
	}
	return view
}

// CompareReceipt acknowledges a comparison batch.
type CompareReceipt struct {
	BatchID   string            `json:"batch_id,omitempty"`
	Applied   int               `json:"applied"`
	Duplicate bool              `json:"duplicate"`
	Instances []JudgingInstance `json:"instances,omitempty"`
}

// RankedInstance is a judging instance with its project, used for prize rankings.
type RankedInstance struct {
	JudgingInstance
	Project Project
}
