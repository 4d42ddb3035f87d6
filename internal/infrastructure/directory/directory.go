// Package directory 员工目录服务客户端
// 团队 / 部门成员、员工所属群组、员工展示信息均来自外部目录服务
package directory

import (
	"context"

	"employee_chat_server/internal/model"
)

// Group 用户所属的团队或部门
type Group struct {
	ID      string     `json:"id"`
	Name    string     `json:"name"`
	Kind    model.Kind `json:"kind"`
	Members []string   `json:"members"`
}

// Conversation 群组对应的会话引用
func (g Group) Conversation() model.Conversation {
	return model.Conversation{Kind: g.Kind, ID: g.ID}
}

// Employee 员工展示信息
type Employee struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ProfileLink string `json:"profileLink"`
}

// Directory 目录服务
type Directory interface {
	// ListMembers 群成员 ID 列表
	ListMembers(ctx context.Context, kind model.Kind, groupID string) ([]string, error)
	// TeamsOf 用户所属的全部团队和部门（含成员）
	TeamsOf(ctx context.Context, userID string) ([]Group, error)
	// EmployeeDisplay 员工展示信息
	EmployeeDisplay(ctx context.Context, userID string) (Employee, error)
}
