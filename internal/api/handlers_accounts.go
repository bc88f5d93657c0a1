package api

import (
	"net/http"

	"github.com/oakline/banking-service/internal/domain"
)

// ListAccountsHandler lists the caller's accounts.
func (h *Handlers) ListAccountsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	accounts, err := h.accounts.List(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, r, "list_accounts", err)
		return
	}
	h.writeJSON(w, http.StatusOK, accounts)
}

// GetAccountHandler returns one of the caller's accounts.
func (h *Handlers) GetAccountHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	accountID, ok := h.pathUUID(w, r, "id", "account")
	if !ok {
		return
	}
	account, err := h.accounts.Get(r.Context(), userID, accountID)
	if err != nil {
		h.writeServiceError(w, r, "get_account", err)
		return
	}
	h.writeJSON(w, http.StatusOK, account)
}

// ListAccountTransactionsHandler pages through an account's ledger.
func (h *Handlers) ListAccountTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	accountID, ok := h.pathUUID(w, r, "id", "account")
	if !ok {
		return
	}
	limit, offset, ok := h.pagination(w, r)
	if !ok {
		return
	}
	items, err := h.accounts.Transactions(r.Context(), userID, accountID, limit, offset)
	if err != nil {
		h.writeServiceError(w, r, "list_account_transactions", err)
		return
	}
	h.writeJSON(w, http.StatusOK, items)
}

// DepositHandler credits one of the caller's accounts.
func (h *Handlers) DepositHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	accountID, ok := h.pathUUID(w, r, "id", "account")
	if !ok {
		return
	}
	var req domain.DepositRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	deposit, err := h.accounts.Deposit(r.Context(), userID, accountID, req)
	if err != nil {
		h.writeServiceError(w, r, "deposit", err)
		return
	}
	h.writeJSON(w, http.StatusCreated, deposit)
}

// ListNotificationsHandler returns the caller's notification inbox.
func (h *Handlers) ListNotificationsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	limit, offset, ok := h.pagination(w, r)
	if !ok {
		return
	}
	opts := domain.NotificationListOptions{
		Limit:      limit,
		Offset:     offset,
		UnreadOnly: r.URL.Query().Get("unread") == "true",
	}
	items, err := h.notifications.List(r.Context(), userID, opts)
	if err != nil {
		h.writeServiceError(w, r, "list_notifications", err)
		return
	}
	h.writeJSON(w, http.StatusOK, items)
}

// MarkNotificationReadHandler marks a single notification as read.
func (h *Handlers) MarkNotificationReadHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	notificationID, ok := h.pathUUID(w, r, "id", "notification")
	if !ok {
		return
	}
	if err := h.notifications.MarkRead(r.Context(), userID, notificationID); err != nil {
		h.writeServiceError(w, r, "mark_notification_read", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MarkAllNotificationsReadHandler marks every unread notification as read.
func (h *Handlers) MarkAllNotificationsReadHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	updated, err := h.notifications.MarkAllRead(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, r, "mark_all_notifications_read", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]int64{"updated": updated})
}

// BankDetailsHandler returns the public institution profile.
func (h *Handlers) BankDetailsHandler(w http.ResponseWriter, r *http.Request) {
	details, err := h.bankDetails.Get(r.Context())
	if err != nil {
		h.writeServiceError(w, r, "bank_details", err)
		return
	}
	h.writeJSON(w, http.StatusOK, details)
}
