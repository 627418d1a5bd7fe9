/*
Package server provides the calendar event REST API.

# Basic Usage

	store := memory.New()
	creds := authmem.New()
	svc := events.NewService(store)
	srv, err := server.New(svc, creds, server.Options{})
	if err != nil {
		log.Fatal(err)
	}
	http.ListenAndServe(":8080", srv)

# URL Scheme

All paths live under a base path, /api/rest/latest/ by default:
  - POST   calendarevents - create an event
  - GET    calendarevents?calendar=<id>&start=<t>&end=<t> - list a range
  - GET    calendarevents/<id>[.json|.xml|.ics] - fetch an event
  - PUT    calendarevents/<id> - update an event
  - DELETE calendarevents/<id> - delete an event
  - POST   calendarevents/<id>/invitation/<status> - answer an invitation

Without a suffix the Accept header selects the representation, falling back
to JSON. Timestamps use RFC3339 with a numeric offset.

# Errors

A form that fails validation is answered with 400 and an envelope listing
every field:

	{"code": 400, "message": "Validation Failed",
	 "errors": {"children": {"title": ["This value should not be blank."], ...}}}

Other failures carry {"code": <status>, "message": <text>}.

# Custom Storage Backend

To plug in another backend, implement storage.Storage and return
*storage.Error values with Type storage.ErrNotFound for missing records:

	func (s *SQLStorage) GetCalendar(ctx context.Context, id int64) (*storage.Calendar, error) {
		cal := &storage.Calendar{}
		err := s.db.QueryRowContext(ctx,
			"SELECT id, user_id, name, is_default FROM calendars WHERE id = ?", id,
		).Scan(&cal.ID, &cal.UserID, &cal.Name, &cal.Default)
		if err == sql.ErrNoRows {
			return nil, &storage.Error{Type: storage.ErrNotFound, Message: "calendar not found"}
		}
		return cal, err
	}
*/
package server
