package sqlinline

const QSelectIntegrationToken = `--sql e7a20b94-5c16-4f83-a9d0-48b3f6e1c25d
select token
from integration_tokens
where provider = $1::text
limit 1;
`

const QUpsertIntegrationToken = `--sql 3c9e5d10-f86b-42a7-bd54-07a1c8e2f693
insert into integration_tokens(provider, token, properties, created_at, updated_at)
values ($1::text, $2::text, coalesce($3::jsonb, '{}'::jsonb), now(), now())
on conflict (provider)
do update set token = excluded.token,
              properties = excluded.properties,
              updated_at = now();
`
