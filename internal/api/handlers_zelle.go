package api

import (
	"log"
	"net/http"

	"github.com/oakline/banking-service/internal/domain"
)

// ListZelleContactsHandler lists the caller's saved recipients.
func (h *Handlers) ListZelleContactsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	contacts, err := h.zelle.ListContacts(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, r, "list_zelle_contacts", err)
		return
	}
	h.writeJSON(w, http.StatusOK, contacts)
}

// CreateZelleContactHandler saves a new recipient.
func (h *Handlers) CreateZelleContactHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	var req domain.ZelleContactRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	contact, err := h.zelle.CreateContact(r.Context(), userID, req)
	if err != nil {
		h.writeServiceError(w, r, "create_zelle_contact", err)
		return
	}
	h.writeJSON(w, http.StatusCreated, contact)
}

// UpdateZelleContactHandler replaces a recipient's details.
func (h *Handlers) UpdateZelleContactHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	contactID, ok := h.pathUUID(w, r, "id", "contact")
	if !ok {
		return
	}
	var req domain.ZelleContactRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	contact, err := h.zelle.UpdateContact(r.Context(), userID, contactID, req)
	if err != nil {
		h.writeServiceError(w, r, "update_zelle_contact", err)
		return
	}
	h.writeJSON(w, http.StatusOK, contact)
}

// DeleteZelleContactHandler removes a recipient.
func (h *Handlers) DeleteZelleContactHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	contactID, ok := h.pathUUID(w, r, "id", "contact")
	if !ok {
		return
	}
	if err := h.zelle.DeleteContact(r.Context(), userID, contactID); err != nil {
		h.writeServiceError(w, r, "delete_zelle_contact", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SendZelleHandler sends money to a saved recipient.
func (h *Handlers) SendZelleHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	var req domain.ZelleSendRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	log.Printf("level=info component=api endpoint=zelle_send outcome=accepted user_id=%s contact_id=%s amount=%s", userID, req.ContactID, req.Amount)
	result, err := h.zelle.Send(r.Context(), userID, req)
	if err != nil {
		log.Printf("level=warn component=api endpoint=zelle_send outcome=failed user_id=%s err=%v", userID, err)
		h.writeServiceError(w, r, "zelle_send", err)
		return
	}
	h.writeJSON(w, http.StatusCreated, map[string]interface{}{
		"success":     true,
		"transaction": result.Transfer,
		"new_balance": result.NewBalance,
	})
}

// ListZelleTransactionsHandler lists the caller's Zelle history.
func (h *Handlers) ListZelleTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	items, err := h.zelle.ListTransactions(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, r, "list_zelle_transactions", err)
		return
	}
	h.writeJSON(w, http.StatusOK, items)
}
