package api

import (
	"time"

	"github.com/jbweber/hearth/internal/reconcile"
	"github.com/jbweber/hearth/internal/store"
	"github.com/jbweber/hearth/internal/vm"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

type CreateVMRequest struct {
	Name      string `json:"name"`
	CPU       int    `json:"cpu"`
	RAM       int    `json:"ram"` // MiB
	ImageName string `json:"image_name"`
}

type CreateVMResponse struct {
	Message string `json:"message"`
	UUID    string `json:"uuid"`
}

type VMResponse struct {
	Name      string `json:"name"`
	UUID      string `json:"uuid"`
	CPUCount  int    `json:"cpu_count"`
	RAMMB     int    `json:"ram_mb"`
	CreatedAt string `json:"created_at"`
	State     string `json:"state"`
}

type ListVMsResponse struct {
	VMs []VMResponse `json:"vms"`
}

type DestroyVMResponse struct {
	Message  string   `json:"message"`
	Warnings []string `json:"warnings,omitempty"`
}

type ReconcileResponse struct {
	GhostVMs []reconcile.GhostVM `json:"ghost_vms"`
}

type TokenRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	ProjectName string `json:"project_name"`
}

type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type ProjectRequest struct {
	Name string `json:"name"`
}

type ProjectResponse struct {
	ID        uint      `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type ListProjectsResponse struct {
	Projects []ProjectResponse `json:"projects"`
}

type UserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type UserResponse struct {
	ID        uint      `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

type ListUsersResponse struct {
	Users []UserResponse `json:"users"`
}

type MemberResponse struct {
	UserID   uint   `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

type ListMembersResponse struct {
	Members []MemberResponse `json:"members"`
}

func toVMResponse(v vm.VMView) VMResponse {
	return VMResponse{
		Name:      v.Name,
		UUID:      v.UUID,
		CPUCount:  v.CPUCount,
		RAMMB:     v.RAMMB,
		CreatedAt: v.CreatedAt.UTC().Format(time.RFC3339),
		State:     v.State,
	}
}

func toProjectResponse(p store.Project) ProjectResponse {
	return ProjectResponse{ID: p.ID, Name: p.Name, CreatedAt: p.CreatedAt.UTC()}
}

func toUserResponse(u store.User) UserResponse {
	return UserResponse{ID: u.ID, Username: u.Username, CreatedAt: u.CreatedAt.UTC()}
}
