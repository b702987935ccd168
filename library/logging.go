package library

// Logger receives operational messages as key-value pairs. *slog.Logger
// satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

const (
	logAttrBookID   = "book_id"
	logAttrMemberID = "member_id"
	logAttrLoanID   = "loan_id"
	logAttrCount    = "count"
)
