package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/MrEthical07/goStage/stage"
)

func (a *app) printList(stages []stage.Stage, err error) error {
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tETAT\tSUJET\tENTREPRISE\tDEBUT\tFIN\tETUDIANT\tENCADRANT")
	for _, st := range stages {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			st.ID, st.Etat, st.Sujet, st.Entreprise,
			formatDate(st.DateDebut), formatDate(st.DateFin),
			st.EtudiantID, formatRef(st.EncadrantID),
		)
	}
	return w.Flush()
}

func (a *app) printStage(st *stage.Stage, err error) error {
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "id\t%d\n", st.ID)
	fmt.Fprintf(w, "etat\t%s\n", st.Etat)
	fmt.Fprintf(w, "sujet\t%s\n", st.Sujet)
	fmt.Fprintf(w, "entreprise\t%s\n", st.Entreprise)
	fmt.Fprintf(w, "ville\t%s\n", st.Ville)
	fmt.Fprintf(w, "dates\t%s .. %s\n", formatDate(st.DateDebut), formatDate(st.DateFin))
	fmt.Fprintf(w, "etudiant\t%d\n", st.EtudiantID)
	fmt.Fprintf(w, "encadrant\t%s\n", formatRef(st.EncadrantID))
	if st.CommentaireRefus != nil {
		fmt.Fprintf(w, "commentaire\t%s\n", *st.CommentaireRefus)
	}
	if st.RapportPath != nil {
		fmt.Fprintf(w, "rapport\t%s\n", *st.RapportPath)
	}
	return w.Flush()
}

func formatDate(d stage.Date) string {
	if d.IsZero() {
		return "-"
	}
	return d.Format("2006-01-02")
}

func formatRef(id *int64) string {
	if id == nil {
		return "-"
	}
	return fmt.Sprint(*id)
}
