package directory

import (
	"context"
	"fmt"
	"time"

	"employee_chat_server/internal/config"
	"employee_chat_server/internal/model"
	"employee_chat_server/pkg/errorx"

	"github.com/go-resty/resty/v2"
)

// 目录服务响应结构
type teamDTO struct {
	TeamID    string      `json:"teamId"`
	TeamName  string      `json:"teamName"`
	Employees []memberDTO `json:"employees"`
}

type memberDTO struct {
	EmployeeID string `json:"employeeId"`
}

type departmentDTO struct {
	DepartmentID   string      `json:"departmentId"`
	DepartmentName string      `json:"departmentName"`
	Employees      []memberDTO `json:"employees"`
}

type employeeDTO struct {
	EmployeeID     string `json:"employeeId"`
	DisplayName    string `json:"displayName"`
	ProfileLink    string `json:"profileLink"`
	DepartmentID   string `json:"departmentId"`
	DepartmentName string `json:"departmentName"`
}

// HTTPDirectory 通过 HTTP 调用目录服务，每次调用受超时约束
type HTTPDirectory struct {
	client *resty.Client
}

// NewHTTPDirectory 创建目录服务客户端
func NewHTTPDirectory(cfg config.DirectoryConfig) *HTTPDirectory {
	timeout := cfg.Timeout * time.Millisecond
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	return &HTTPDirectory{client: client}
}

func (d *HTTPDirectory) get(ctx context.Context, path string, params map[string]string, out any) error {
	resp, err := d.client.R().
		SetContext(ctx).
		SetPathParams(params).
		SetResult(out).
		Get(path)
	if err != nil {
		return errorx.Wrapf(err, errorx.CodeDirectoryUnavailable, "目录服务调用失败 %s", path)
	}
	if resp.IsError() {
		return errorx.Newf(errorx.CodeDirectoryUnavailable, "目录服务返回 %d: %s", resp.StatusCode(), resp.Request.URL)
	}
	return nil
}

func (d *HTTPDirectory) team(ctx context.Context, teamID string) (*teamDTO, error) {
	var teams []teamDTO
	if err := d.get(ctx, "/api/team/employee/{teamId}", map[string]string{"teamId": teamID}, &teams); err != nil {
		return nil, err
	}
	if len(teams) == 0 {
		return nil, errorx.Newf(errorx.CodeNotFound, "团队 %s 不存在", teamID)
	}
	return &teams[0], nil
}

func (d *HTTPDirectory) department(ctx context.Context, deptID string) (*departmentDTO, error) {
	var dept departmentDTO
	if err := d.get(ctx, "/api/department/{departmentId}/employees", map[string]string{"departmentId": deptID}, &dept); err != nil {
		return nil, err
	}
	return &dept, nil
}

func (d *HTTPDirectory) employee(ctx context.Context, userID string) (*employeeDTO, error) {
	var emp employeeDTO
	if err := d.get(ctx, "/api/employee/{id}", map[string]string{"id": userID}, &emp); err != nil {
		return nil, err
	}
	return &emp, nil
}

func memberIDs(members []memberDTO) []string {
	ids := make([]string, 0, len(members))
	for _, m := range members {
		if m.EmployeeID != "" {
			ids = append(ids, m.EmployeeID)
		}
	}
	return ids
}

func (d *HTTPDirectory) ListMembers(ctx context.Context, kind model.Kind, groupID string) ([]string, error) {
	switch kind {
	case model.KindTeam:
		t, err := d.team(ctx, groupID)
		if err != nil {
			return nil, err
		}
		return memberIDs(t.Employees), nil
	case model.KindDepartment:
		dept, err := d.department(ctx, groupID)
		if err != nil {
			return nil, err
		}
		return memberIDs(dept.Employees), nil
	case model.KindPrivate:
		return nil, errorx.New(errorx.CodeInvalidParam, "私聊没有成员列表")
	}
	return nil, fmt.Errorf("unknown conversation kind %d", kind)
}

func (d *HTTPDirectory) TeamsOf(ctx context.Context, userID string) ([]Group, error) {
	var teams []teamDTO
	if err := d.get(ctx, "/api/employee/team/{employeeId}", map[string]string{"employeeId": userID}, &teams); err != nil {
		return nil, err
	}
	groups := make([]Group, 0, len(teams)+1)
	for _, t := range teams {
		groups = append(groups, Group{ID: t.TeamID, Name: t.TeamName, Kind: model.KindTeam, Members: memberIDs(t.Employees)})
	}

	emp, err := d.employee(ctx, userID)
	if err != nil {
		return nil, err
	}
	if emp.DepartmentID != "" {
		dept, err := d.department(ctx, emp.DepartmentID)
		if err != nil {
			return nil, err
		}
		name := dept.DepartmentName
		if name == "" {
			name = emp.DepartmentName
		}
		groups = append(groups, Group{ID: emp.DepartmentID, Name: name, Kind: model.KindDepartment, Members: memberIDs(dept.Employees)})
	}
	return groups, nil
}

func (d *HTTPDirectory) EmployeeDisplay(ctx context.Context, userID string) (Employee, error) {
	emp, err := d.employee(ctx, userID)
	if err != nil {
		return Employee{}, err
	}
	if emp.EmployeeID == "" {
		emp.EmployeeID = userID
	}
	return Employee{ID: emp.EmployeeID, Name: emp.DisplayName, ProfileLink: emp.ProfileLink}, nil
}

var _ Directory = (*HTTPDirectory)(nil)
