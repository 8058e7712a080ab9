// Package model はストアフロントで扱うドメインモデルを定義する。
// いずれもリモートAPIが所有するデータのクライアント側の写しである。
package model

import "time"

// Role はユーザーの権限ロールを表す。
type Role string

const (
	// RoleUser は一般購入者。
	RoleUser Role = "user"
	// RoleSeller は出品者。
	RoleSeller Role = "seller"
	// RoleAdmin は管理者。
	RoleAdmin Role = "admin"
)

// Valid はロールが既知の値かどうかを返す。
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleSeller, RoleAdmin:
		return true
	}
	return false
}

// User はセッション確認・ログインで返される認証済みユーザーを表す。
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  Role   `json:"role"`
}

// UserSummary は管理画面のユーザー一覧の1行を表す。
type UserSummary struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// UserDetail は管理画面のユーザー詳細を表す。
// 出品者の場合は出品中の商品を含む。
type UserDetail struct {
	UserSummary
	Products []AdminProduct `json:"products,omitempty"`
}
