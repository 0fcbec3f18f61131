package api

import (
	"net/http"

	"github.com/youssefsiam38/activitypg/gateway"
	"github.com/youssefsiam38/activitypg/markdown"
)

// Note handlers

func (rt *router) handleListNotes(w http.ResponseWriter, r *http.Request) {
	q := rt.listQuery(r)
	notes, err := rt.gw.Notes.ListPage(r.Context(), q)
	if err != nil {
		rt.writeErr(w, err)
		return
	}
	writeJSONWithMeta(w, http.StatusOK, notes, pageMeta(q, len(notes)))
}

func (rt *router) handleGetNote(w http.ResponseWriter, r *http.Request) {
	note, err := rt.gw.Notes.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		rt.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

func (rt *router) handleGetNoteHTML(w http.ResponseWriter, r *http.Request) {
	note, err := rt.gw.Notes.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		rt.writeErr(w, err)
		return
	}
	html, err := markdown.Render(note.Content)
	if err != nil {
		rt.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": note.Key(), "html": html})
}

func (rt *router) handleCreateNote(w http.ResponseWriter, r *http.Request) {
	var req gateway.NoteInput
	if !decode(w, r, &req) {
		return
	}
	note, err := rt.gw.Notes.Create(r.Context(), req)
	if err != nil {
		rt.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

func (rt *router) handleUpdateNote(w http.ResponseWriter, r *http.Request) {
	var req gateway.NotePatch
	if !decode(w, r, &req) {
		return
	}
	note, err := rt.gw.Notes.Update(r.Context(), r.PathValue("id"), req)
	if err != nil {
		rt.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

func (rt *router) handleDeleteNote(w http.ResponseWriter, r *http.Request) {
	if _, err := rt.gw.Notes.Delete(r.Context(), r.PathValue("id")); err != nil {
		rt.writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Todo handlers

func (rt *router) handleListTodos(w http.ResponseWriter, r *http.Request) {
	q := rt.listQuery(r)
	todos, err := rt.gw.Todos.ListPage(r.Context(), q)
	if err != nil {
		rt.writeErr(w, err)
		return
	}
	writeJSONWithMeta(w, http.StatusOK, todos, pageMeta(q, len(todos)))
}

func (rt *router) handleGetTodo(w http.ResponseWriter, r *http.Request) {
	todo, err := rt.gw.Todos.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		rt.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, todo)
}

func (rt *router) handleCreateTodo(w http.ResponseWriter, r *http.Request) {
	var req gateway.TodoInput
	if !decode(w, r, &req) {
		return
	}
	todo, err := rt.gw.Todos.Create(r.Context(), req)
	if err != nil {
		rt.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, todo)
}

func (rt *router) handleUpdateTodo(w http.ResponseWriter, r *http.Request) {
	var req gateway.TodoPatch
	if !decode(w, r, &req) {
		return
	}
	todo, err := rt.gw.Todos.Update(r.Context(), r.PathValue("id"), req)
	if err != nil {
		rt.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, todo)
}

func (rt *router) handleDeleteTodo(w http.ResponseWriter, r *http.Request) {
	if _, err := rt.gw.Todos.Delete(r.Context(), r.PathValue("id")); err != nil {
		rt.writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
