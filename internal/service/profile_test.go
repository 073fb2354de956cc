// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/accounts-api/internal/apperr"
	"github.com/olegiv/accounts-api/internal/model"
)

func TestGetUser(t *testing.T) {
	a, _ := newTestAccounts(t)
	sess := signupAnn(t, a)

	user, err := a.GetUser(context.Background(), sess.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "ann@x.io", user.Email)

	_, err = a.GetUser(context.Background(), 999)
	e := requireKind(t, err, apperr.KindNotFound)
	assert.Equal(t, MsgNoUser, e.Message)
}

func TestListUsers(t *testing.T) {
	a, _ := newTestAccounts(t)
	ctx := context.Background()
	for i := range 5 {
		_, err := a.Signup(ctx, SignupInput{
			Name:            fmt.Sprintf("User %d", i),
			Email:           fmt.Sprintf("user%d@x.io", i),
			Password:        "pass1234",
			PasswordConfirm: "pass1234",
		})
		require.NoError(t, err)
	}

	users, total, err := a.ListUsers(ctx, 2, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 5, total)
	require.Len(t, users, 2)
	assert.Equal(t, "user2@x.io", users[0].Email)

	users, _, err = a.ListUsers(ctx, 0, 0)
	require.NoError(t, err)
	assert.Len(t, users, 5)

	users, _, err = a.ListUsers(ctx, 10, 2)
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestListUsersPageOutOfRange(t *testing.T) {
	a, _ := newTestAccounts(t)
	signupAnn(t, a)
	ctx := context.Background()

	for _, page := range []int{MaxOffset, math.MaxInt} {
		_, _, err := a.ListUsers(ctx, page, MaxPageSize)
		e := requireKind(t, err, apperr.KindValidation)
		assert.Equal(t, MsgPageOutOfRange, e.Message)
	}

	// The last page whose offset fits is still served.
	users, total, err := a.ListUsers(ctx, MaxOffset/MaxPageSize+1, MaxPageSize)
	require.NoError(t, err)
	assert.Empty(t, users)
	assert.Equal(t, int64(1), total)
}

func TestUpdateMe(t *testing.T) {
	a, _ := newTestAccounts(t)
	sess := signupAnn(t, a)

	name := "Ann Smith"
	email := "Ann.Smith@x.io"
	user, err := a.UpdateMe(context.Background(), sess.User, UpdateMeInput{
		Name:     &name,
		Email:    &email,
		Uploaded: "user-1-abc.jpeg",
	})
	require.NoError(t, err)

	assert.Equal(t, "Ann Smith", user.Name)
	assert.Equal(t, "ann.smith@x.io", user.Email)
	assert.Equal(t, "user-1-abc.jpeg", user.Photo)

	// Untouched fields keep their value.
	user, err = a.UpdateMe(context.Background(), user, UpdateMeInput{})
	require.NoError(t, err)
	assert.Equal(t, "Ann Smith", user.Name)
	assert.Equal(t, "user-1-abc.jpeg", user.Photo)
}

func TestUpdateMePhotoReference(t *testing.T) {
	a, _ := newTestAccounts(t)
	sess := signupAnn(t, a)
	user, err := a.UpdateMe(context.Background(), sess.User, UpdateMeInput{Uploaded: "user-1-abc.jpeg"})
	require.NoError(t, err)

	tests := []struct {
		name  string
		photo string
		want  string
		err   bool
	}{
		{"current photo", "user-1-abc.jpeg", "user-1-abc.jpeg", false},
		{"another user's file", "user-2-def.jpeg", "", true},
		{"path to another file", "../users/user-2-def.jpeg", "", true},
		{"default", model.DefaultPhoto, model.DefaultPhoto, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := a.UpdateMe(context.Background(), user, UpdateMeInput{Photo: tt.photo})
			if tt.err {
				e := requireKind(t, err, apperr.KindValidation)
				assert.Equal(t, MsgPhotoUploadOnly, e.Message)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Photo)
		})
	}
}

func TestUpdateMeRejects(t *testing.T) {
	a, store := newTestAccounts(t)
	sess := signupAnn(t, a)
	_, err := a.Signup(context.Background(), SignupInput{
		Name: "Bob", Email: "bob@x.io", Password: "p", PasswordConfirm: "p",
	})
	require.NoError(t, err)

	_, err = a.UpdateMe(context.Background(), sess.User, UpdateMeInput{PasswordGiven: true})
	e := requireKind(t, err, apperr.KindValidation)
	assert.Equal(t, MsgNotForPasswords, e.Message)

	taken := "bob@x.io"
	_, err = a.UpdateMe(context.Background(), sess.User, UpdateMeInput{Email: &taken})
	requireKind(t, err, apperr.KindValidation)
	assert.Equal(t, "ann@x.io", store.users[sess.User.ID].Email)

	blank := "  "
	_, err = a.UpdateMe(context.Background(), sess.User, UpdateMeInput{Name: &blank})
	requireKind(t, err, apperr.KindValidation)
}
