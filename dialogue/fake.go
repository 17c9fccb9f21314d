package dialogue

import "context"

// FakeModel is a scripted Model for tests. Replies are consumed in order;
// when the script runs out the last reply repeats. A non-nil Err fails
// every call.
type FakeModel struct {
	Replies []string
	Err     error

	// Calls records the turn history of each Generate call.
	Calls []History
	// System records the instruction passed on the last call.
	System string

	next int
}

func (f *FakeModel) Generate(_ context.Context, system string, turns History) (string, error) {
	f.System = system
	f.Calls = append(f.Calls, append(History(nil), turns...))
	if f.Err != nil {
		return "", f.Err
	}
	if len(f.Replies) == 0 {
		return "ok", nil
	}
	reply := f.Replies[min(f.next, len(f.Replies)-1)]
	f.next++
	return reply, nil
}
