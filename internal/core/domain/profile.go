package domain

// ProfileSummary est la vue publique d'un profil, telle que rendue dans
// les listes followers/followees. Résolue via l'annuaire d'identités,
// jamais possédée par ce service.
type ProfileSummary struct {
	Email     string `json:"email"`
	Name      string `json:"name"`
	Introduce string `json:"introduce"`
	ImageURL  string `json:"image_url"`
}
