package model

// MovieDoc is a movie in the document store's `movies` collection.  Unlike
// the relational Movie, title, director and rating are all required, and the
// rating bound is checked here rather than trusted to the backend.
type MovieDoc struct {
	ID       string  `json:"id" bson:"_id,omitempty"`
	Title    string  `json:"title" bson:"title"`
	Director string  `json:"director" bson:"director"`
	Rating   float64 `json:"rating" bson:"rating"`
}

// MovieDocs describes the document collection.
var MovieDocs = &Entity{
	Name: "movies",
	Columns: []Column{
		{Field: "id", Name: "_id", Kind: KindText, PrimaryKey: true},
		{Field: "title", Name: "title", Kind: KindText},
		{Field: "director", Name: "director", Kind: KindText},
		{Field: "rating", Name: "rating", Kind: KindReal},
	},
	Rules: map[string]string{
		"title":    "required",
		"director": "required",
		"rating":   "required,min=1,max=10",
	},
	Messages: ratingMessages,
}

func (d MovieDoc) Values() Values {
	v := Values{"title": d.Title, "director": d.Director, "rating": d.Rating}
	if d.ID != "" {
		v["id"] = d.ID
	}
	return v
}

func MovieDocFromValues(v Values) MovieDoc {
	return MovieDoc{
		ID:       Text(v, "id"),
		Title:    Text(v, "title"),
		Director: Text(v, "director"),
		Rating:   Real(v, "rating"),
	}
}
