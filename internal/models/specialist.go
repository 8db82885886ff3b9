package models

// SpecialistEntry is one doctor listing of the specialist directory.
type SpecialistEntry struct {
	DoctorID      string `bson:"doctor_id" json:"doctor_id"`
	Name          string `bson:"name" json:"name"`
	Email         string `bson:"email" json:"email"`
	Phone         string `bson:"phone,omitempty" json:"phone,omitempty"`
	Type          string `bson:"type,omitempty" json:"type,omitempty"`
	Specialist    string `bson:"specialist" json:"specialist"`
	SubSpecialist string `bson:"sub_specialist,omitempty" json:"sub_specialist,omitempty"`
}
