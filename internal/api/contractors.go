package api

import (
	"net/http"

	"github.com/user/propdesk/internal/db"
)

type createContractorRequest struct {
	Name        string  `json:"name"`
	Specialty   string  `json:"specialty"`
	Phone       string  `json:"phone"`
	Email       string  `json:"email"`
	PostalCode  string  `json:"postal_code"`
	Rating      float64 `json:"rating"`
	ReviewCount int     `json:"review_count"`
}

func (h *handler) createContractor(w http.ResponseWriter, r *http.Request) {
	var req createContractorRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Name == "" || req.Specialty == "" {
		jsonError(w, http.StatusBadRequest, "name and specialty are required")
		return
	}

	contractor := &db.Contractor{
		Name:        req.Name,
		Specialty:   req.Specialty,
		Phone:       req.Phone,
		Email:       req.Email,
		PostalCode:  req.PostalCode,
		Rating:      req.Rating,
		ReviewCount: req.ReviewCount,
		Active:      true,
	}
	if err := h.contractorRepo.Create(r.Context(), contractor); err != nil {
		jsonError(w, http.StatusInternalServerError, err.Error())
		return
	}
	jsonResponse(w, http.StatusCreated, contractor)
}

func (h *handler) listContractors(w http.ResponseWriter, r *http.Request) {
	contractors, err := h.contractorRepo.List(r.Context(), db.ContractorFilter{
		Specialty:  r.URL.Query().Get("specialty"),
		PostalCode: r.URL.Query().Get("postal_code"),
		ActiveOnly: r.URL.Query().Get("all") == "",
	})
	if err != nil {
		jsonError(w, http.StatusInternalServerError, err.Error())
		return
	}
	jsonResponse(w, http.StatusOK, contractors)
}

func (h *handler) getContractor(w http.ResponseWriter, r *http.Request) {
	contractor, err := h.contractorRepo.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		jsonError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if contractor == nil {
		jsonError(w, http.StatusNotFound, "contractor not found")
		return
	}
	jsonResponse(w, http.StatusOK, contractor)
}

func (h *handler) deleteContractor(w http.ResponseWriter, r *http.Request) {
	if err := h.contractorRepo.Delete(r.Context(), r.PathValue("id")); err != nil {
		jsonError(w, http.StatusInternalServerError, err.Error())
		return
	}
	jsonResponse(w, http.StatusNoContent, nil)
}
