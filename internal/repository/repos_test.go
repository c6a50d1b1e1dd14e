package repository

import (
	"testing"
)

// 各Postgresリポジトリが対応するインターフェースを満たすことを検証
func TestPostgresAccountRepo_ImplementsInterface(t *testing.T) {
	var _ AccountRepository = (*PostgresAccountRepo)(nil)
}

func TestPostgresFormRepo_ImplementsInterface(t *testing.T) {
	var _ FormRepository = (*PostgresFormRepo)(nil)
}

func TestPostgresFeedbackRepo_ImplementsInterface(t *testing.T) {
	var _ FeedbackRepository = (*PostgresFeedbackRepo)(nil)
}

func TestNewPostgresAccountRepo_Initializes(t *testing.T) {
	if NewPostgresAccountRepo(nil) == nil {
		t.Fatal("expected non-nil repo")
	}
}

func TestNewPostgresFormRepo_Initializes(t *testing.T) {
	if NewPostgresFormRepo(nil) == nil {
		t.Fatal("expected non-nil repo")
	}
}

func TestNewPostgresFeedbackRepo_Initializes(t *testing.T) {
	if NewPostgresFeedbackRepo(nil) == nil {
		t.Fatal("expected non-nil repo")
	}
}
