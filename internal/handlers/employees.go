package handlers

import (
	"net/http"

	"github.com/xelth-com/assetledger/internal/registry"
)

func (r *Router) listBranches(w http.ResponseWriter, req *http.Request) {
	branches, err := r.Registry.Branches(req.Context())
	if err != nil {
		respondErr(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, branches)
}

func (r *Router) createBranch(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Name     string `json:"name"`
		Location string `json:"location"`
	}
	if err := decodeJSON(req, &body); err != nil {
		respondErr(w, req, err)
		return
	}
	b, err := r.Registry.CreateBranch(req.Context(), body.Name, body.Location)
	if err != nil {
		respondErr(w, req, err)
		return
	}
	respondJSON(w, http.StatusCreated, b)
}

// branchEmployees feeds the allocation picker: active employees only
func (r *Router) branchEmployees(w http.ResponseWriter, req *http.Request) {
	id, err := pathID(req, "id")
	if err != nil {
		respondErr(w, req, err)
		return
	}
	emps, err := r.Registry.EmployeesByBranch(req.Context(), id)
	if err != nil {
		respondErr(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, emps)
}

func (r *Router) listEmployees(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()
	emps, err := r.Registry.Employees(req.Context(), registry.EmployeeFilter{
		Status: q.Get("status"),
		Search: q.Get("q"),
	})
	if err != nil {
		respondErr(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, emps)
}

func (r *Router) createEmployee(w http.ResponseWriter, req *http.Request) {
	var body registry.EmployeeInput
	if err := decodeJSON(req, &body); err != nil {
		respondErr(w, req, err)
		return
	}
	e, err := r.Registry.CreateEmployee(req.Context(), body)
	if err != nil {
		respondErr(w, req, err)
		return
	}
	respondJSON(w, http.StatusCreated, e)
}

func (r *Router) getEmployee(w http.ResponseWriter, req *http.Request) {
	id, err := pathID(req, "id")
	if err != nil {
		respondErr(w, req, err)
		return
	}
	d, err := r.Registry.Employee(req.Context(), id)
	if err != nil {
		respondErr(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, d)
}

func (r *Router) resignEmployee(w http.ResponseWriter, req *http.Request) {
	id, err := pathID(req, "id")
	if err != nil {
		respondErr(w, req, err)
		return
	}
	e, err := r.Registry.Resign(req.Context(), id)
	if err != nil {
		respondErr(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, e)
}

func (r *Router) activateEmployee(w http.ResponseWriter, req *http.Request) {
	id, err := pathID(req, "id")
	if err != nil {
		respondErr(w, req, err)
		return
	}
	e, err := r.Registry.Activate(req.Context(), id)
	if err != nil {
		respondErr(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, e)
}
