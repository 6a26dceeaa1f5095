package repository

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/jupiterclapton/cenackle/services/trust-service/internal/core/domain"
)

// Neo4jFollowRepo stocke les arêtes FOLLOWS dans le graphe.
// Les noeuds User sont identifiés par email (la clé d'identité du système).
type Neo4jFollowRepo struct {
	driver neo4j.DriverWithContext
}

func NewNeo4jFollowRepo(driver neo4j.DriverWithContext) *Neo4jFollowRepo {
	return &Neo4jFollowRepo{driver: driver}
}

// EnsureSchema crée les index pour que les lookups par email soient O(1)
func (r *Neo4jFollowRepo) EnsureSchema(ctx context.Context) error {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		// Contrainte d'unicité sur User.email (crée aussi un index)
		query := `CREATE CONSTRAINT user_email_unique IF NOT EXISTS FOR (u:User) REQUIRE u.email IS UNIQUE`
		_, err := tx.Run(ctx, query, nil)
		return nil, err
	})
	return err
}

func (r *Neo4jFollowRepo) HasRelation(ctx context.Context, followerEmail, followeeEmail string) (bool, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MATCH (a:User {email: $follower}), (b:User {email: $followee})
			RETURN EXISTS((a)-[:FOLLOWS]->(b)) AS has
		`
		res, err := tx.Run(ctx, query, map[string]any{"follower": followerEmail, "followee": followeeEmail})
		if err != nil {
			return nil, err
		}
		if res.Next(ctx) {
			has, _ := res.Record().Get("has")
			return has.(bool), nil
		}
		return false, res.Err()
	})
	if err != nil {
		return false, err
	}
	return result.(bool), nil
}

func (r *Neo4jFollowRepo) CreateRelation(ctx context.Context, followerEmail, followeeEmail string) error {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		// MERGE est idempotent : crée les noeuds s'ils n'existent pas,
		// crée la flèche si elle n'existe pas. created_at n'est posé qu'à
		// la création pour garder l'ordre de listing stable.
		query := `
			MERGE (a:User {email: $follower})
			MERGE (b:User {email: $followee})
			MERGE (a)-[r:FOLLOWS]->(b)
			ON CREATE SET r.created_at = datetime()
		`
		_, err := tx.Run(ctx, query, map[string]any{
			"follower": followerEmail,
			"followee": followeeEmail,
		})
		return nil, err
	})
	return err
}

func (r *Neo4jFollowRepo) DeleteRelation(ctx context.Context, followerEmail, followeeEmail string) error {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MATCH (a:User {email: $follower})-[r:FOLLOWS]->(b:User {email: $followee})
			DELETE r
		`
		_, err := tx.Run(ctx, query, map[string]any{"follower": followerEmail, "followee": followeeEmail})
		return nil, err
	})
	return err
}

func (r *Neo4jFollowRepo) GetRelationStatus(ctx context.Context, actorEmail, targetEmail string) (*domain.RelationStatus, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		// Une seule requête pour checker les deux sens !
		query := `
			MATCH (a:User {email: $actor}), (b:User {email: $target})
			RETURN EXISTS((a)-[:FOLLOWS]->(b)) as following,
			       EXISTS((b)-[:FOLLOWS]->(a)) as followedBy
		`
		res, err := tx.Run(ctx, query, map[string]any{"actor": actorEmail, "target": targetEmail})
		if err != nil {
			return nil, err
		}

		if res.Next(ctx) {
			rec := res.Record()
			following, _ := rec.Get("following")
			followedBy, _ := rec.Get("followedBy")
			return &domain.RelationStatus{
				IsFollowing:  following.(bool),
				IsFollowedBy: followedBy.(bool),
			}, nil
		}
		// Si aucun noeud trouvé, on considère false/false
		return &domain.RelationStatus{}, nil
	})

	if err != nil {
		return nil, err
	}
	return result.(*domain.RelationStatus), nil
}

func (r *Neo4jFollowRepo) ListFollowerEmails(ctx context.Context, ofEmail string) ([]string, error) {
	// Flèches entrantes : f -> FOLLOWS -> of
	query := `
		MATCH (u:User {email: $email})<-[r:FOLLOWS]-(f:User)
		RETURN f.email AS email
		ORDER BY r.created_at, f.email
	`
	return r.listEmails(ctx, query, ofEmail)
}

func (r *Neo4jFollowRepo) ListFolloweeEmails(ctx context.Context, ofEmail string) ([]string, error) {
	// Flèches sortantes : of -> FOLLOWS -> f
	query := `
		MATCH (u:User {email: $email})-[r:FOLLOWS]->(f:User)
		RETURN f.email AS email
		ORDER BY r.created_at, f.email
	`
	return r.listEmails(ctx, query, ofEmail)
}

func (r *Neo4jFollowRepo) listEmails(ctx context.Context, query, ofEmail string) ([]string, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	res, err := session.Run(ctx, query, map[string]any{"email": ofEmail})
	if err != nil {
		return nil, err
	}

	emails := make([]string, 0)
	for res.Next(ctx) {
		email, _ := res.Record().Get("email")
		emails = append(emails, email.(string))
	}
	return emails, res.Err()
}
