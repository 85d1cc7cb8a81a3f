package handler

import "net/http"

const apiReference = `parley API reference

All endpoints speak JSON with the envelope {"ok":true, ...} on success
and {"ok":false, "error":..., "details"?:...} on failure. Authenticate
with "Authorization: Bearer <token>" unless noted.

Auth
  POST /api/auth/identity   {display_name}            -> {token, username, display_name}
                            no password; account created on first sight;
                            username = lower(display_name) with spaces as _
  POST /api/auth/login      {username, password}      -> {token, username, display_name}
                            account created on first use; 401 on wrong password
  POST /api/auth/logout                               revokes the bearer token
  GET  /auth/google/login                             redirect to Google consent
  GET  /auth/google/callback                          completes Google sign-in

Lobby (player surface, addressed by 4-letter code)
  POST /api/lobby/create    {display_name, map_name?, assignment?} -> 201 {code, player, lobby}
  POST /api/lobby/join      {code, display_name}      -> {code, player, lobby}
  GET  /api/lobby/{code}                              -> {lobby, status, player_count}  (no auth)
  POST /api/lobby/{code}/start                        host only -> {lobby, game_id}
  GET  /api/lobby/{code}/game                         -> {game}
  GET  /api/lobby/{code}/orders                       -> {orders: {power, phase, orders, possible}}
  POST /api/lobby/{code}/orders   {orders: [...]}     all-or-nothing; illegal orders get
                                                      400 with details.invalid_orders
                                                      and details.valid_orders_accepted
  POST /api/lobby/{code}/ready    {state}             talk-round ready, tagged with the
                                                      sub-state the client last observed
  POST /api/lobby/{code}/message  {recipient, message} recipient is a power name or GLOBAL
  POST /api/lobby/{code}/process                      host only -> {advanced, previous?, current?, kicked?}
  GET  /api/lobby/{code}/log?limit=&offset=           -> {entries, count}

Games (direct surface, addressed by game id; create/delete/process are admin)
  GET    /api/games                                   -> {games, count}
  POST   /api/games   {game_id, map_name?, rules?, n_controls?, talk_rounds?} -> 201
  GET    /api/games/{id}                              -> {game}
  DELETE /api/games/{id}
  POST   /api/games/{id}/join     {power?}            empty power = random free one
  POST   /api/games/{id}/leave
  GET    /api/games/{id}/orders
  POST   /api/games/{id}/orders   {orders: [...]}
  POST   /api/games/{id}/ready    {state}
  POST   /api/games/{id}/message  {recipient, message}
  POST   /api/games/{id}/process
  GET    /api/games/{id}/history?from=&to=            phase range, e.g. S1901M..F1901M

Notifications
  GET /api/ws?token=<token>                           WebSocket; events {type, game_id, data};
                                                      client sends {action: subscribe|unsubscribe, game_id}

Other
  GET /healthz
  GET /api/docs                                       this document

Phases are named S1901T style (or "SPRING 1901 TALK"). Orders are strings:
  A/F LOC H|D|B, A/F LOC - LOC, A LOC S A LOC [- LOC],
  F LOC C A LOC - LOC, A LOC R LOC, WAIVE
`

// Docs handles GET /api/docs with a plain-text API reference.
func Docs(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(apiReference))
}
