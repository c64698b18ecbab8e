package nodesim

import (
	"github.com/graphql-go/graphql"
)

// Schema exposes the node's identity and the queries it has answered:
//
//	{ node served(status: "BUSY") { method kind responseType payment status } }
func (n *Node) Schema() (graphql.Schema, error) {
	served := graphql.NewObject(graphql.ObjectConfig{
		Name: "Served",
		Fields: graphql.Fields{
			"method":       &graphql.Field{Type: graphql.String},
			"kind":         &graphql.Field{Type: graphql.String},
			"responseType": &graphql.Field{Type: graphql.String},
			"payment":      &graphql.Field{Type: graphql.Float},
			"status":       &graphql.Field{Type: graphql.String},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: graphql.NewObject(graphql.ObjectConfig{
			Name: "Query",
			Fields: graphql.Fields{
				"node": &graphql.Field{
					Type: graphql.String,
					Resolve: func(graphql.ResolveParams) (interface{}, error) {
						return n.id.String(), nil
					},
				},
				"served": &graphql.Field{
					Type: graphql.NewList(served),
					Args: graphql.FieldConfigArgument{
						"status": &graphql.ArgumentConfig{Type: graphql.String},
					},
					Resolve: func(p graphql.ResolveParams) (interface{}, error) {
						status, _ := p.Args["status"].(string)
						var out []map[string]interface{}
						for _, s := range n.Served() {
							if status != "" && s.Status.String() != status {
								continue
							}
							out = append(out, map[string]interface{}{
								"method":       s.Method.String(),
								"kind":         s.Kind.String(),
								"responseType": s.ResponseType.String(),
								"payment":      float64(s.Payment),
								"status":       s.Status.String(),
							})
						}
						return out, nil
					},
				},
			},
		}),
	})
}
