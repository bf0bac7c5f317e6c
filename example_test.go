package mjtree_test

import (
	"context"
	"fmt"
	"log"

	"github.com/aretw0/mjtree"
	"github.com/aretw0/mjtree/pkg/domain"
	"github.com/aretw0/mjtree/pkg/dsl"
)

// ExampleEngine_Format parses markup and writes it back in canonical layout.
func ExampleEngine_Format() {
	eng := mjtree.New()

	out, err := eng.Format(context.Background(),
		`<mjml><mj-body><mj-section><mj-column><mj-text color="#333">Hello</mj-text></mj-column></mj-section></mj-body></mjml>`)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(out)

	// Output:
	// <mjml>
	//   <mj-body>
	//     <mj-section>
	//       <mj-column>
	//         <mj-text color="#333">Hello</mj-text>
	//       </mj-column>
	//     </mj-section>
	//   </mj-body>
	// </mjml>
}

// ExampleEngine_ValidateBody reports both sides of a bad placement.
func ExampleEngine_ValidateBody() {
	eng := mjtree.New()
	ctx := context.Background()

	body, err := eng.ParseBody(ctx, `<mjml><mj-body><mj-section><mj-text>Hi</mj-text></mj-section></mj-body></mjml>`)
	if err != nil {
		log.Fatal(err)
	}

	res := eng.ValidateBody(ctx, body)
	fmt.Println("valid:", res.Valid)
	for _, e := range res.Errors {
		fmt.Println(e.Message)
	}

	// Output:
	// valid: false
	// mj-text is not allowed as a child of mj-section. Allowed children: mj-column, mj-group
	// mj-text cannot be a child of mj-section. Allowed parents: mj-column, mj-hero
}

// ExampleEngine_NewDocument builds a document the way a visual editor does.
func ExampleEngine_NewDocument() {
	eng := mjtree.New(mjtree.WithIDGenerator(domain.NewSequence("n")))
	doc := eng.NewDocument()

	section, _ := doc.Drop("mj-section", "", domain.End)
	column, _ := doc.Drop("mj-column", section.ID, domain.End)
	text, _ := doc.Drop("mj-text", column.ID, domain.End)
	_ = doc.SetContent(text.ID, "Welcome!")

	if _, err := doc.Drop("mj-column", "", domain.End); err != nil {
		fmt.Println(err)
	}
	fmt.Println(text.ID, doc.Validate().Valid)

	// Output:
	// placement not allowed: mj-column inside document body
	// n-3 true
}

// Example_buildTree builds a tree in code. Catalog defaults are filled in and
// explicit attributes override them in place.
func Example_buildTree() {
	eng := mjtree.New()

	b := dsl.New(eng.Model())
	b.Add("mj-section").
		Add("mj-column").Attr("width", "50%").
		Add("mj-spacer").Attr("height", "40px")

	fmt.Println(eng.Serialize(context.Background(), b.MustBuild()))

	// Output:
	// <mj-section padding="20px 0" background-color="#ffffff">
	//   <mj-column width="50%">
	//     <mj-spacer height="40px" />
	//   </mj-column>
	// </mj-section>
}
