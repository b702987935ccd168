package library

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

const entityMember = "member"

// MemberManager manages member records and their credentials.
type MemberManager struct {
	port Port
	settings

	dummyOnce sync.Once
	dummyHash []byte
}

func NewMemberManager(port Port, opts ...Option) *MemberManager {
	return &MemberManager{port: port, settings: newSettings(opts)}
}

func normalizeMember(in MemberInput) MemberInput {
	return MemberInput{
		Username: NormalizeUsername(in.Username),
		Email:    NormalizeEmail(in.Email),
		Password: in.Password,
	}
}

func (m *MemberManager) hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), m.bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// uniqueMemberKeys checks username and email against other active members.
func uniqueMemberKeys(ctx context.Context, q Querier, in MemberInput, excludeID int64) (FieldErrors, error) {
	v := NewValidator()
	for field, value := range map[string]string{FieldUsername: in.Username, FieldEmail: in.Email} {
		dups, err := checkUnique(ctx, q, field, value, excludeID)
		if err != nil {
			return nil, err
		}
		v.Merge(dups)
	}
	return v.Errors, nil
}

// Create registers a member. The password is stored as a bcrypt hash.
func (m *MemberManager) Create(ctx context.Context, in MemberInput) Result {
	in = normalizeMember(in)
	v := NewValidator()
	ValidateMember(v, in.Username, in.Email, in.Password, true)
	if !v.Valid() {
		return validationFailed(v.Errors)
	}

	hash, err := m.hash(in.Password)
	if err != nil {
		return m.failed("hash_password", err)
	}

	return runTx(ctx, m.port, m.settings, "create_member", func(q Querier) (Result, error) {
		dups, err := uniqueMemberKeys(ctx, q, in, 0)
		if err != nil {
			return Result{}, err
		}
		if len(dups) > 0 {
			return validationFailed(dups), nil
		}

		id, err := q.Insert(ctx, insertMember(in.Username, in.Email, hash))
		if err != nil {
			return Result{}, err
		}
		m.logger.Info("member created", logAttrMemberID, id)
		return success(id), nil
	})
}

// Update changes username and email of an active member. A non-empty
// password is validated and replaces the stored hash.
func (m *MemberManager) Update(ctx context.Context, id int64, in MemberInput) Result {
	in = normalizeMember(in)
	v := NewValidator()
	ValidateMember(v, in.Username, in.Email, in.Password, false)
	if !v.Valid() {
		return validationFailed(v.Errors)
	}

	var hash string
	if in.Password != "" {
		var err error
		if hash, err = m.hash(in.Password); err != nil {
			return m.failed("hash_password", err)
		}
	}

	return runTx(ctx, m.port, m.settings, "update_member", func(q Querier) (Result, error) {
		dups, err := uniqueMemberKeys(ctx, q, in, id)
		if err != nil {
			return Result{}, err
		}
		if len(dups) > 0 {
			return validationFailed(dups), nil
		}

		n, err := q.Exec(ctx, updateActiveMember(id, in.Username, in.Email, hash))
		if err != nil {
			return Result{}, err
		}
		if n == 0 {
			return notFound(entityMember), nil
		}
		return success(id), nil
	})
}

// ResetPassword replaces the password of an active member.
func (m *MemberManager) ResetPassword(ctx context.Context, id int64, password string) Result {
	v := NewValidator()
	ValidatePasswordPlaintext(v, password)
	if !v.Valid() {
		return validationFailed(v.Errors)
	}

	hash, err := m.hash(password)
	if err != nil {
		return m.failed("hash_password", err)
	}

	n, err := m.port.Exec(ctx, updateMemberPassword(id, hash))
	if err != nil {
		return m.failed("reset_password", err)
	}
	if n == 0 {
		return notFound(entityMember)
	}
	m.logger.Info("member password reset", logAttrMemberID, id)
	return success(id)
}

// SoftDelete hides a member. Members with open loans cannot be deleted.
func (m *MemberManager) SoftDelete(ctx context.Context, id int64) Result {
	return runTx(ctx, m.port, m.settings, "delete_member", func(q Querier) (Result, error) {
		var member Member
		found, err := q.SelectOne(ctx, &member, selectActiveMember(id))
		if err != nil {
			return Result{}, err
		}
		if !found {
			return notFound(entityMember), nil
		}

		var openLoans int64
		if _, err := q.SelectOne(ctx, &openLoans, countOpenLoansForMember(id)); err != nil {
			return Result{}, err
		}
		if openLoans > 0 {
			return stateConflict(ReasonHasActiveLoans), nil
		}

		if _, err := q.Exec(ctx, softDeleteMember(id, m.now())); err != nil {
			return Result{}, err
		}
		m.logger.Info("member deleted", logAttrMemberID, id)
		return success(id), nil
	})
}

// GetByID returns an active member.
func (m *MemberManager) GetByID(ctx context.Context, id int64) (*Member, Result) {
	var member Member
	found, err := m.port.SelectOne(ctx, &member, selectActiveMember(id))
	if err != nil {
		return nil, m.failed("get_member", err)
	}
	if !found {
		return nil, notFound(entityMember)
	}
	return &member, success(member.ID)
}

// FindIDByUsername resolves the id of an active member.
func (m *MemberManager) FindIDByUsername(ctx context.Context, username string) (int64, Result) {
	var member Member
	found, err := m.port.SelectOne(ctx, &member, selectActiveMemberByUsername(NormalizeUsername(username)))
	if err != nil {
		return 0, m.failed("find_member", err)
	}
	if !found {
		return 0, notFound(entityMember)
	}
	return member.ID, success(member.ID)
}

// List returns the active members ordered by username.
func (m *MemberManager) List(ctx context.Context) ([]Member, error) {
	members := []Member{}
	if err := m.port.SelectAll(ctx, &members, listActiveMembers()); err != nil {
		return nil, m.failed("list_members", err).Err()
	}
	return members, nil
}

// Authenticate checks a username and password. Unknown users, deleted users
// and wrong passwords all yield the same KindAuthFailure, and an unknown user
// still costs one bcrypt comparison.
func (m *MemberManager) Authenticate(ctx context.Context, username, password string) (int64, Result) {
	var member Member
	found, err := m.port.SelectOne(ctx, &member, selectActiveMemberByUsername(NormalizeUsername(username)))
	if err != nil {
		return 0, m.failed("authenticate", err)
	}

	hash := m.dummy()
	if found {
		hash = []byte(member.PasswordHash)
	}
	err = bcrypt.CompareHashAndPassword(hash, []byte(password))
	if err != nil && !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		m.logger.Warn("password comparison failed", logAttrError, err.Error())
	}
	if !found || err != nil {
		return 0, authFailure()
	}
	return member.ID, success(member.ID)
}

// dummy returns a throwaway hash at the configured cost.
func (m *MemberManager) dummy() []byte {
	m.dummyOnce.Do(func() {
		hash, err := bcrypt.GenerateFromPassword([]byte("library-lending-placeholder"), m.bcryptCost)
		if err != nil {
			// CompareHashAndPassword fails on a malformed hash, which is still
			// a failed login.
			hash = []byte{}
		}
		m.dummyHash = hash
	})
	return m.dummyHash
}
