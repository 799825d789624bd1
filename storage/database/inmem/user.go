package inmemdb

import (
	"context"
	"strings"

	"github.com/mathhub/factolearn/core"
	"github.com/mathhub/factolearn/core/user"
)

var userComparators = comparators[user.User]{
	"name":       func(a, b user.User) int { return cmpStrings(a.Name, b.Name) },
	"username":   func(a, b user.User) int { return cmpStrings(a.Username, b.Username) },
	"email":      func(a, b user.User) int { return cmpStrings(a.Email, b.Email) },
	"created_at": func(a, b user.User) int { return cmpTimes(a.CreatedAt, b.CreatedAt) },
	"updated_at": func(a, b user.User) int { return cmpTimes(a.UpdatedAt, b.UpdatedAt) },
	"last_login": func(a, b user.User) int { return cmpTimes(a.LastLogin, b.LastLogin) },
	"is_active": func(a, b user.User) int {
		if a.Active() == b.Active() {
			return 0
		}
		if a.Active() {
			return 1
		}
		return -1
	},
	"id": func(a, b user.User) int { return strings.Compare(a.ID, b.ID) },
}

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db}
}

func copyUser(usr user.User) user.User {
	usr.Roles = cloneStrings(usr.Roles)
	usr.PasswordHash = append([]byte(nil), usr.PasswordHash...)
	if usr.IsActive != nil {
		usr.SetActive(*usr.IsActive)
	}
	return usr
}

func isExcluded(id string, excluded []user.User) bool {
	for _, u := range excluded {
		if u.ID == id {
			return true
		}
	}
	return false
}

func (repo *userRepository) CheckUsernameUniqueness(
	_ context.Context, username, email string, excludedUsers []user.User, _ ...core.DBExecutor,
) error {
	clash := repo.db.user.filter(func(u user.User) bool {
		if isExcluded(u.ID, excludedUsers) {
			return false
		}
		return (username != "" && u.Username == username) || (email != "" && u.Email == email)
	})
	if len(clash) > 0 {
		return user.ErrUserExists
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User, _ ...core.DBExecutor) (user.User, error) {
	if err := repo.CheckUsernameUniqueness(ctx, usr.Username, usr.Email, nil); err != nil {
		return user.User{}, err
	}
	usr = copyUser(usr)
	usr.ID = newID()
	if usr.Roles == nil {
		usr.Roles = []string{}
	}
	repo.db.user.set(usr.ID, usr)
	return copyUser(usr), nil
}

func (repo *userRepository) QueryUsers(
	_ context.Context, filter *user.QueryFilter, ordering []core.DBOrdering, _ ...core.DBExecutor,
) ([]user.User, error) {
	users := repo.db.user.filter(func(u user.User) bool {
		if filter == nil {
			return true
		}
		if filter.IDs != nil && !core.ContainsString(filter.IDs, u.ID) {
			return false
		}
		if filter.Search != "" &&
			!(containsFold(u.Name, filter.Search) || containsFold(u.Username, filter.Search) || containsFold(u.Email, filter.Search)) {
			return false
		}
		if len(filter.Roles) > 0 && !hasAnyRolePrefix(u, filter.Roles) {
			return false
		}
		if filter.IsActive != nil && u.Active() != *filter.IsActive {
			return false
		}
		if !filter.CreatedFrom.IsZero() && u.CreatedAt.Before(filter.CreatedFrom) {
			return false
		}
		if !filter.CreatedTo.IsZero() && u.CreatedAt.After(filter.CreatedTo) {
			return false
		}
		return true
	})

	sortRows(users, orderingWith(ordering,
		core.DBOrdering{Field: "created_at", Ascending: true},
		core.DBOrdering{Field: "id", Ascending: true},
	), userComparators)
	for i := range users {
		users[i] = copyUser(users[i])
	}
	return users, nil
}

func hasAnyRolePrefix(u user.User, prefixes []string) bool {
	for _, prefix := range prefixes {
		for _, role := range u.Roles {
			if strings.HasPrefix(strings.ToLower(role), strings.ToLower(prefix)) {
				return true
			}
		}
	}
	return false
}

func (repo *userRepository) GetUser(_ context.Context, filter user.GetFilter, _ ...core.DBExecutor) (user.User, error) {
	if filter.ID != "" {
		if usr, ok := repo.db.user.get(filter.ID); ok {
			return copyUser(usr), nil
		}
		return user.User{}, user.ErrNotFound
	}

	matches := repo.db.user.filter(func(u user.User) bool {
		switch {
		case filter.Username != "":
			return u.Username == filter.Username
		case filter.Email != "":
			return u.Email == filter.Email
		case filter.UsernameOrEmail != "":
			return u.Username == filter.UsernameOrEmail || u.Email == filter.UsernameOrEmail
		}
		return false
	})
	if len(matches) == 0 {
		return user.User{}, user.ErrNotFound
	}
	return copyUser(matches[0]), nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User, _ ...core.DBExecutor) (user.User, error) {
	if err := repo.CheckUsernameUniqueness(ctx, usr.Username, usr.Email, []user.User{usr}); err != nil {
		return user.User{}, err
	}
	usr = copyUser(usr)
	if !repo.db.user.update(usr.ID, usr) {
		return user.User{}, user.ErrNotFound
	}
	return copyUser(usr), nil
}

func (repo *userRepository) UpdateOrCreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	if usr.ID == "" {
		return repo.CreateUser(ctx, usr, exec...)
	}
	return repo.UpdateUser(ctx, usr, exec...)
}

func (repo *userRepository) DeleteUsersByID(_ context.Context, ids []string, _ ...core.DBExecutor) (int, error) {
	return repo.db.user.delete(ids...), nil
}
