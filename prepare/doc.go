// Package prepare implements the repository Preparer from request parameters.
//
// Recognised parameters, all limited to whitelisted columns and declared
// relations:
//
//	filter[status]=active        status = 'active'
//	filter[id]=1,2,3             id IN (1, 2, 3)
//	sort=-age,name               ORDER BY age DESC, name ASC
//	include=posts,posts.comments load relations
//	include=posts_count          set the number of posts on the record
//
// Relation counts are only set on single records, through RelationCounter.
package prepare
