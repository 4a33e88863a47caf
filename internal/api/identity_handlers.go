package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jbweber/hearth/internal/identity"
)

func (a *API) createProjectHandler(w http.ResponseWriter, r *http.Request) {
	var req ProjectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}

	p, err := a.dir.CreateProject(r.Context(), req.Name)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProjectResponse(*p))
}

func (a *API) listProjectsHandler(w http.ResponseWriter, r *http.Request) {
	projects, err := a.dir.ListProjects(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}

	resp := ListProjectsResponse{Projects: make([]ProjectResponse, 0, len(projects))}
	for _, p := range projects {
		resp.Projects = append(resp.Projects, toProjectResponse(p))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) getProjectHandler(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id", identity.ErrProjectNotFound)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	p, err := a.dir.GetProject(r.Context(), id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProjectResponse(*p))
}

// deleteProjectHandler handles DELETE /v1/projects/{id}.
// Returns 409 while the project still owns VMs.
func (a *API) deleteProjectHandler(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id", identity.ErrProjectNotFound)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	if err := a.dir.DeleteProject(r.Context(), id); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) listMembersHandler(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id", identity.ErrProjectNotFound)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	members, err := a.dir.ListProjectMembers(r.Context(), id)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	resp := ListMembersResponse{Members: make([]MemberResponse, 0, len(members))}
	for _, m := range members {
		resp.Members = append(resp.Members, MemberResponse{UserID: m.UserID, Username: m.Username, Role: m.Role})
	}
	writeJSON(w, http.StatusOK, resp)
}

// assignRoleHandler handles PUT /v1/projects/{id}/users/{uid}/roles/{role}.
func (a *API) assignRoleHandler(w http.ResponseWriter, r *http.Request) {
	projectID, userID, ok := a.bindingParams(w, r)
	if !ok {
		return
	}
	if err := a.dir.AssignRole(r.Context(), userID, projectID, chi.URLParam(r, "role")); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// revokeRoleHandler handles DELETE /v1/projects/{id}/users/{uid}/roles/{role}.
func (a *API) revokeRoleHandler(w http.ResponseWriter, r *http.Request) {
	projectID, userID, ok := a.bindingParams(w, r)
	if !ok {
		return
	}
	if err := a.dir.RevokeRole(r.Context(), userID, projectID, chi.URLParam(r, "role")); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) bindingParams(w http.ResponseWriter, r *http.Request) (projectID, userID uint, ok bool) {
	projectID, err := idParam(r, "id", identity.ErrProjectNotFound)
	if err != nil {
		a.fail(w, r, err)
		return 0, 0, false
	}
	userID, err = idParam(r, "uid", identity.ErrUserNotFound)
	if err != nil {
		a.fail(w, r, err)
		return 0, 0, false
	}
	return projectID, userID, true
}

func (a *API) createUserHandler(w http.ResponseWriter, r *http.Request) {
	var req UserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}

	u, err := a.dir.CreateUser(r.Context(), req.Username, req.Password)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserResponse(*u))
}

func (a *API) listUsersHandler(w http.ResponseWriter, r *http.Request) {
	users, err := a.dir.ListUsers(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}

	resp := ListUsersResponse{Users: make([]UserResponse, 0, len(users))}
	for _, u := range users {
		resp.Users = append(resp.Users, toUserResponse(u))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) getUserHandler(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id", identity.ErrUserNotFound)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	u, err := a.dir.GetUser(r.Context(), id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(*u))
}

func (a *API) deleteUserHandler(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id", identity.ErrUserNotFound)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	if err := a.dir.DeleteUser(r.Context(), id); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
