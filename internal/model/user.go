package model

// User represents an application user record as stored in the
// `users` table.  Each field corresponds to a column in the database.
//
// Fields:
//  UserID   – primary key identifier of the user.
//  Username – display name, non-empty.
//  IsAdmin  – admin flag, false until an operator changes it.
//  Password – bcrypt hash of the credential.  Never serialized and never
//             copied into the cache.
type User struct {
	UserID   int64  `json:"userId"`
	Username string `json:"username"`
	IsAdmin  bool   `json:"isAdmin"`
	Password string `json:"-"`
}

// Users describes the `users` table.
var Users = &Entity{
	Name: "users",
	Columns: []Column{
		{Field: "userId", Name: "user_id", Kind: KindInteger, PrimaryKey: true},
		{Field: "username", Name: "username", Kind: KindText},
		{Field: "isAdmin", Name: "is_admin", Kind: KindBool, Default: false},
		{Field: "password", Name: "password", Kind: KindText, Nullable: true},
	},
	Rules: map[string]string{
		"username": "required,max=64",
	},
}

// Values converts u to a record.
func (u User) Values() Values {
	v := Values{"username": u.Username, "isAdmin": u.IsAdmin}
	if u.UserID != 0 {
		v["userId"] = u.UserID
	}
	putText(v, "password", u.Password)
	return v
}

// UserFromValues builds a User from a normalized record.
func UserFromValues(v Values) User {
	return User{
		UserID:   Int(v, "userId"),
		Username: Text(v, "username"),
		IsAdmin:  Bool(v, "isAdmin"),
		Password: Text(v, "password"),
	}
}
