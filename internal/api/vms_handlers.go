package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jbweber/hearth/internal/reconcile"
	"github.com/jbweber/hearth/internal/vm"
)

// listVMsHandler handles GET /v1/vms for the caller's project.
func (a *API) listVMsHandler(w http.ResponseWriter, r *http.Request) {
	sess, _ := sessionFrom(r.Context())

	views, err := a.compute.ListVMs(r.Context(), sess.ProjectID)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	resp := ListVMsResponse{VMs: make([]VMResponse, 0, len(views))}
	for _, v := range views {
		resp.VMs = append(resp.VMs, toVMResponse(v))
	}
	writeJSON(w, http.StatusOK, resp)
}

// createVMHandler handles POST /v1/vms.
//
// Request: JSON body with fields "name", "cpu", "ram" (MiB) and "image_name".
// Returns 400 for missing fields, an unknown image or a taken name, and 500
// when creation failed and was rolled back.
func (a *API) createVMHandler(w http.ResponseWriter, r *http.Request) {
	sess, _ := sessionFrom(r.Context())

	var req CreateVMRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	if req.Name == "" || req.CPU == 0 || req.RAM == 0 || req.ImageName == "" {
		a.fail(w, r, fmt.Errorf("%w: missing required VM parameters (name, cpu, ram, image_name)", vm.ErrInvalidRequest))
		return
	}

	result, err := a.compute.CreateVM(r.Context(), vm.CreateRequest{
		ProjectID: sess.ProjectID,
		Name:      req.Name,
		CPUCount:  req.CPU,
		RAMMB:     req.RAM,
		ImageName: req.ImageName,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, CreateVMResponse{
		Message: fmt.Sprintf("VM %s created.", result.Name),
		UUID:    result.UUID,
	})
}

// destroyVMHandler handles DELETE /v1/vms/{name}.
func (a *API) destroyVMHandler(w http.ResponseWriter, r *http.Request) {
	sess, _ := sessionFrom(r.Context())
	name := chi.URLParam(r, "name")

	result, err := a.compute.DestroyVM(r.Context(), sess.ProjectID, name)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, DestroyVMResponse{
		Message:  fmt.Sprintf("VM %s destroyed.", result.Name),
		Warnings: result.Warnings,
	})
}

// reconcileHandler handles POST /v1/actions/reconcile.
func (a *API) reconcileHandler(w http.ResponseWriter, r *http.Request) {
	ghosts, err := a.compute.ReconcileVMs(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if ghosts == nil {
		ghosts = []reconcile.GhostVM{}
	}
	writeJSON(w, http.StatusOK, ReconcileResponse{GhostVMs: ghosts})
}
