package library

import (
	"context"
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultBcryptCost = 12

	logMsgOperationFailed = "operation failed"
	logAttrOperation      = "operation"
)

// Option configures the managers.
type Option func(*settings)

type settings struct {
	logger     Logger
	clock      func() time.Time
	bcryptCost int
	dbOptions  []DatabaseOption
}

// WithLogger sets the logger for the managers and the database.
func WithLogger(logger Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock replaces time.Now, e.g. for deterministic loan dates in tests.
func WithClock(clock func() time.Time) Option {
	return func(s *settings) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithBcryptCost sets the bcrypt cost for new password hashes. Values outside
// bcrypt's accepted range are ignored.
func WithBcryptCost(cost int) Option {
	return func(s *settings) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			s.bcryptCost = cost
		}
	}
}

// WithDatabaseOptions forwards options to NewDatabase.
func WithDatabaseOptions(opts ...DatabaseOption) Option {
	return func(s *settings) {
		s.dbOptions = append(s.dbOptions, opts...)
	}
}

func newSettings(opts []Option) settings {
	s := settings{
		logger:     nopLogger{},
		clock:      time.Now,
		bcryptCost: DefaultBcryptCost,
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// now returns the current time in UTC so stored timestamps sort lexically.
func (s settings) now() time.Time {
	return s.clock().UTC()
}

// errRollback aborts a transaction whose outcome is already recorded.
var errRollback = errors.New("library: rollback")

// runTx runs fn in one transaction. A non-OK result rolls the transaction
// back; an error becomes a persistence failure unless it is a unique-index
// violation on a key field, which is reported like the pre-check would.
func runTx(ctx context.Context, port Port, s settings, op string, fn func(q Querier) (Result, error)) Result {
	var res Result
	err := port.InTx(ctx, func(q Querier) error {
		r, err := fn(q)
		if err != nil {
			return err
		}
		res = r
		if !r.OK() {
			return errRollback
		}
		return nil
	})
	if err == nil || errors.Is(err, errRollback) {
		return res
	}
	if fields, dup := duplicateFieldErrors(err); dup {
		return validationFailed(fields)
	}
	return s.failed(op, err)
}

// failed logs err under the operation name and converts it to a persistence
// failure.
func (s settings) failed(op string, err error) Result {
	s.logger.Error(logMsgOperationFailed, logAttrOperation, op, logAttrError, err.Error())
	return persistenceFailure(err)
}

// LibraryManager is a thin façade wiring every manager over one port.
type LibraryManager struct {
	db *Database

	books   *BookCatalog
	members *MemberManager
	lending *LendingEngine
	stats   *Statistics
	unique  *UniquenessValidator
}

// NewLibraryManager opens (or creates) the SQLite database at dbPath.
func NewLibraryManager(dbPath string, opts ...Option) (*LibraryManager, error) {
	s := newSettings(opts)
	dbOpts := append([]DatabaseOption{WithDatabaseLogger(s.logger)}, s.dbOptions...)
	db, err := NewDatabase(dbPath, dbOpts...)
	if err != nil {
		return nil, err
	}
	lm := NewLibraryManagerWithPort(db, opts...)
	lm.db = db
	return lm, nil
}

// NewLibraryManagerWithPort wires the managers over an existing port.
func NewLibraryManagerWithPort(port Port, opts ...Option) *LibraryManager {
	return &LibraryManager{
		books:   NewBookCatalog(port, opts...),
		members: NewMemberManager(port, opts...),
		lending: NewLendingEngine(port, opts...),
		stats:   NewStatistics(port, opts...),
		unique:  NewUniquenessValidator(port),
	}
}

// Close closes the underlying database, if the manager opened one.
func (lm *LibraryManager) Close() error {
	if lm.db == nil {
		return nil
	}
	return lm.db.Close()
}

func (lm *LibraryManager) Books() *BookCatalog              { return lm.books }
func (lm *LibraryManager) Members() *MemberManager          { return lm.members }
func (lm *LibraryManager) Lending() *LendingEngine          { return lm.lending }
func (lm *LibraryManager) Stats() *Statistics               { return lm.stats }
func (lm *LibraryManager) Uniqueness() *UniquenessValidator { return lm.unique }
